package models

// LineageReport is the JSON form of an observed process
type LineageReport struct {
	Pid     int      `json:"pid"`
	Ppid    int      `json:"ppid"`
	Name    string   `json:"name"`
	Cmdline string   `json:"cmdline,omitempty"`
	Status  []string `json:"status,omitempty"`
}

// SpawnReport is the JSON form of a spawn outcome
type SpawnReport struct {
	Outcome         string `json:"outcome"`
	// Pid is only meaningful when Outcome is "resolved"; 0 is a valid value
	Pid             int    `json:"pid"`
	IntermediatePid int    `json:"intermediate_pid,omitempty"`
	Errno           int    `json:"errno,omitempty"`
	Error           string `json:"error,omitempty"`
}
