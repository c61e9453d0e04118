// Package accessory models the on/off accessory that the bridge keeps in
// step with the physical device.
//
// Status is tri-state: On, Off, or Unknown while the device has not
// confirmed its state. The bridge writes device-reported values through
// SetStatus; the automation framework requests changes through Request,
// which are delivered to OnChange observers.
package accessory
