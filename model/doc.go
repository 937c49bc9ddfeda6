// Package model defines the provider-neutral request/response types and the
// Model interface that flows use to drive generation. Provider adapters live
// in subpackages (model/openai, model/anthropic); MockModel supports tests
// and offline examples.
package model
