package model

// Snapshot is the openFDA 510(k) dataset snapshot: a results array of
// clearance records.
type Snapshot struct {
	Results []SnapshotDevice `json:"results"`
}

// SnapshotDevice is one clearance record in the dataset snapshot. Only the
// fields the pipeline consumes are mapped; everything else passes through
// untouched in the raw file.
type SnapshotDevice struct {
	KNumber      string          `json:"k_number"`
	DeviceName   string          `json:"device_name"`
	Applicant    string          `json:"applicant"`
	Contact      string          `json:"contact"`
	DecisionDate string          `json:"decision_date"`
	DateReceived string          `json:"date_received"`
	ProductCode  string          `json:"product_code"`
	Specialty    string          `json:"advisory_committee_description"`
	CountryCode  string          `json:"country_code"`
	State        string          `json:"state"`
	OpenFDA      SnapshotOpenFDA `json:"openfda"`
}

// SnapshotOpenFDA holds the nested openfda metadata block.
type SnapshotOpenFDA struct {
	DeviceClass      string `json:"device_class"`
	RegulationNumber string `json:"regulation_number"`
}

// Index returns the snapshot's devices keyed by identifier. Records with
// an empty k_number are skipped.
func (s *Snapshot) Index() map[string]SnapshotDevice {
	idx := make(map[string]SnapshotDevice, len(s.Results))
	for _, d := range s.Results {
		if d.KNumber != "" {
			idx[d.KNumber] = d
		}
	}
	return idx
}
