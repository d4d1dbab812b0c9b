// Package buttons implements bd, the button daemon.
//
// It polls a set of configured button lines through a LineReader,
// classifies each line's raw level with a debounce FSM, and publishes
// BD_EVENT_BUTTON events onto the bus. GPIO access itself lives behind
// the LineReader interface; the daemon owns only the timing and
// classification logic.
package buttons
