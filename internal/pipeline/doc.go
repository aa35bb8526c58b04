// Package pipeline implements the text-transformation stages that turn raw
// chat-export Markdown into repaired HTML fragments.
//
// The stages run in a fixed order, and the order is load-bearing because $,
// #, [, ], \( and \[ are overloaded between Markdown and LaTeX:
//
//  1. Normalize rewrites every math delimiter style into one canonical pair
//     set and produces the span classification used by later stages.
//  2. ProtectMath replaces classified math regions with opaque placeholder
//     tokens so the Markdown converter cannot tokenize inside them.
//  3. GoldmarkConverter turns the protected Markdown into an HTML fragment.
//  4. RestoreMath swaps the placeholders back in as recognizable math
//     container elements for client-side typesetting.
//  5. RepairHTML catches residual corruption patterns that only become
//     visible after line breaks have turned into <br/> tags.
//
// Every stage is a pure function of its input and is idempotent: running a
// stage on its own output changes nothing. Unrecoverable ambiguities are
// passed through unchanged and recorded as diagnostics, never raised as
// errors.
package pipeline
