// Package agents contains the ticket pipeline stages riding on the dispatch
// router: triage, knowledge enrichment, automated remediation, escalation,
// analytics, and learning.
//
// Each stage is a thin handler: decode the ticket, do one step, route the
// ticket onward. The expensive dependencies (classification, search) sit
// behind interfaces so real providers can replace the shipped rule-based
// implementations without touching the stages. Routing between stages is a
// validated table, never a string switch: an unmapped category fails at
// startup, not silently at runtime.
package agents
