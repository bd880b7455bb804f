package models

import "time"

// DiscoveryMode selects the classification strategy for a scan.
type DiscoveryMode string

const (
	DiscoveryModeNapalm   DiscoveryMode = "napalm"
	DiscoveryModeSSHLogin DiscoveryMode = "ssh-login"
)

// ValidDiscoveryMode reports whether m is a known mode.
func ValidDiscoveryMode(m string) bool {
	switch DiscoveryMode(m) {
	case DiscoveryModeNapalm, DiscoveryModeSSHLogin:
		return true
	}
	return false
}

// DeviceType is the scan classification outcome for a host.
type DeviceType string

const (
	DeviceTypeCisco   DeviceType = "cisco"
	DeviceTypeLinux   DeviceType = "linux"
	DeviceTypeUnknown DeviceType = "unknown"
)

// ScanState is the lifecycle state of a scan job.
type ScanState string

const (
	ScanStateRunning  ScanState = "running"
	ScanStateFinished ScanState = "finished"
)

// ScanResult records one classified host. At most one result exists per
// IP within a job; it names the credential that opened the host.
type ScanResult struct {
	IP           string     `json:"ip"`
	CredentialID int64      `json:"credential_id"`
	DeviceType   DeviceType `json:"device_type"`
	Hostname     string     `json:"hostname,omitempty"`
	Platform     string     `json:"platform,omitempty"`
}

// ScanProgress is a consistent snapshot of job counters.
type ScanProgress struct {
	TotalTargets       int `json:"total_targets"`
	Scanned            int `json:"scanned"`
	Alive              int `json:"alive"`
	Authenticated      int `json:"authenticated"`
	Unreachable        int `json:"unreachable"`
	AuthFailed         int `json:"auth_failed"`
	DriverNotSupported int `json:"driver_not_supported"`
}

// ScanJobStatus is the API view of a job.
type ScanJobStatus struct {
	JobID    string       `json:"job_id"`
	State    ScanState    `json:"state"`
	Created  time.Time    `json:"created"`
	Progress ScanProgress `json:"progress"`
	Results  []ScanResult `json:"results"`
	Errors   []string     `json:"errors,omitempty"`
}

// ScanJobSummary is one row of the active-jobs listing.
type ScanJobSummary struct {
	JobID         string    `json:"job_id"`
	State         ScanState `json:"state"`
	Created       time.Time `json:"created"`
	TotalTargets  int       `json:"total_targets"`
	Authenticated int       `json:"authenticated"`
}

// OnboardDevice is one device in an onboarding submission. The SMS
// fields apply to cisco devices; linux devices flow into the inventory
// generator instead.
type OnboardDevice struct {
	IP              string `json:"ip" validate:"required,ip"`
	Hostname        string `json:"hostname,omitempty"`
	Location        string `json:"location,omitempty"`
	Namespace       string `json:"namespace,omitempty"`
	Role            string `json:"role,omitempty"`
	Status          string `json:"status,omitempty"`
	InterfaceStatus string `json:"interface_status,omitempty"`
	IPStatus        string `json:"ip_status,omitempty"`
	Platform        string `json:"platform,omitempty"`
	Port            int    `json:"port,omitempty"`
	Timeout         int    `json:"timeout,omitempty"`
}

// OnboardResult summarizes an onboarding submission.
type OnboardResult struct {
	Accepted      int      `json:"accepted"`
	CiscoQueued   int      `json:"cisco_queued"`
	LinuxAdded    int      `json:"linux_added"`
	InventoryPath string   `json:"inventory_path,omitempty"`
	JobIDs        []string `json:"job_ids"`
	Errors        []string `json:"errors,omitempty"`
}
