package driver

// DeviceInfo contains information about the connected PLC.
type DeviceInfo struct {
	Family       string `json:"family"`
	Vendor       string `json:"vendor"`
	Model        string `json:"model"`
	Version      string `json:"version"`
	SerialNumber string `json:"serial_number"`
	Description  string `json:"description"`
}
