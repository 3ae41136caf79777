// Package scriptgen turns an artifact collection into a narration script.
//
// Generator is the interface the executor depends on. Three providers are
// available: an OpenAI-compatible chat completion client (OpenAI,
// OpenRouter), Cloudflare Workers AI over REST, and Vertex AI through the
// genai SDK. Every provider builds the same prompt, pulls the model text out
// of its response through a Normalizer, decodes the JSON script tolerating
// code fences and surrounding prose, and validates the result as a
// project.Script before returning it. Output that does not validate is an
// ErrValidation and is never persisted.
//
// Remote calls go through retry.Do; providers surface HTTP failures as
// *StatusError so the classifier can tell rate limits from bad requests.
package scriptgen
