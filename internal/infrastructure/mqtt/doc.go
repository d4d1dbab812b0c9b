// Package mqtt wraps paho.mqtt.golang for the integrations bridge. It
// republishes bus events under the hearo topic tree and maintains a
// retained online/offline status with a Last Will for crash detection.
package mqtt
