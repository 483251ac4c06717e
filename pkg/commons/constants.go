// Copyright (c) 2023-2025 GlimpseHQ
//
// Licensed under GPL-2.0 with Glimpse Additional Terms.
// See LICENSE.md for commercial usage.
package commons

type contextKey string

// TraceIDKey carries a request/trace identifier on a context.
const TraceIDKey contextKey = "trace_id"
