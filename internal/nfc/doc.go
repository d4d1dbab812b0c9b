// Package nfc implements nfcd, the NFC tag daemon.
//
// It polls a Reader for tag uids, debounces the noisy read stream into
// stable placed/removed edges, and publishes tag lifecycle events plus
// a periodic TAG_PRESENT heartbeat while a tag is seated. The PN532
// read cycle itself lives behind the Reader interface.
package nfc
