// Package led implements ledd, the LED daemon.
//
// The orchestrator mirrors its HCSM_EVENT_STATE_CHANGED events to the
// ledd endpoint; each system state maps to a base animation. Direct
// commands layer short feedback flashes on top and toggle the error
// sweep. The Renderer interface hides the pixel hardware.
package led
