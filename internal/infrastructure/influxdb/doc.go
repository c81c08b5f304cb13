// Package influxdb writes registry operation telemetry to InfluxDB v2.
//
// Each registry operation produces one point:
//
//	registry_operations,operation=insert,outcome=created,service=wifiattend duration_ms=0.84
//
// Writes go through the client library's non-blocking, batched write API;
// asynchronous failures are reported through SetOnError. The integration
// is optional: Connect returns ErrDisabled when influxdb.enabled is false.
package influxdb
