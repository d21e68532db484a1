// Package coordination models the small cross-process restart signals: the
// liveness/restart marker file and the one-shot startup probe built from it.
//
// The marker is the sole restart-detection mechanism. It is written when the
// controller enters its running state and cleared on clean teardown; its
// presence at the next startup means the previous instance terminated
// abnormally. Readers tolerate every race by treating any read failure as
// "marker absent".
package coordination
