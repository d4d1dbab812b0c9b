// Package debounce turns noisy physical input samples into clean
// interaction events.
//
// FSM classifies a debounced button line into short presses, long
// presses and periodic hold ticks. Presence debounces intermittent
// NFC tag reads into stable placed/removed edges. Both are pure state
// machines driven by sampled values and explicit timestamps, so they
// are deterministic under test.
package debounce
