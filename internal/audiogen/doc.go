// Package audiogen synthesizes narration audio.
//
// Generator is the narrow interface the executor depends on. The ElevenLabs
// client posts the narration to the text-to-speech endpoint and returns the
// raw bytes with the provider's content type. Empty text and a missing API
// key fail before any request is made; HTTP failures surface as *StatusError
// so callers can classify them for retry.
package audiogen
