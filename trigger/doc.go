// Package trigger models scheduling rules bound to pipelines.
//
// A Trigger pairs a Schedule (Interval, TumblingWindow or DailyAt) with a
// time zone, a start time and parameter bindings. Schedule math is pure:
// Latest returns the most recent boundary at or before a given instant and
// Next the first boundary after it. Activation is a guarded flag on the
// Trigger, changed only through Registry.Activate and Registry.Deactivate
// and persisted by an ActivationStore.
package trigger
