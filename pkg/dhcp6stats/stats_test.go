package dhcp6stats

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestNewCounters(t *testing.T) {
	c := New("eth0", "v1.0.0")
	snap := c.GetSnapshot()
	if snap.Interface != "eth0" || snap.Version != "v1.0.0" {
		t.Errorf("snapshot = %+v, want interface eth0 version v1.0.0", snap)
	}
	if snap.StateTransitions == nil || snap.ExchangesBegun == nil {
		t.Error("maps should be initialized, not nil")
	}
}

func TestRecordTransitionCountsStatesAndExchanges(t *testing.T) {
	c := New("eth0", "v1.0.0")
	c.RecordTransition("Solicit", false)
	c.RecordTransition("Solicit", false)
	c.RecordTransition("Bound", true)
	c.RecordTransition("Bound", false)

	snap := c.GetSnapshot()
	if snap.StateTransitions["Solicit"] != 2 {
		t.Errorf("Solicit transitions = %d, want 2", snap.StateTransitions["Solicit"])
	}
	if snap.ExchangesBegun["Solicit"] != 2 {
		t.Errorf("Solicit exchanges = %d, want 2", snap.ExchangesBegun["Solicit"])
	}
	if _, ok := snap.ExchangesBegun["Bound"]; ok {
		t.Error("Bound should not count as an exchange entry")
	}
	if snap.BindCount != 1 {
		t.Errorf("BindCount = %d, want 1", snap.BindCount)
	}
}

func TestRecordSymptom(t *testing.T) {
	c := New("eth0", "v1.0.0")
	c.RecordSymptom()
	c.RecordSymptom()
	if snap := c.GetSnapshot(); snap.SymptomCount != 2 {
		t.Errorf("SymptomCount = %d, want 2", snap.SymptomCount)
	}
}

func TestExportJSON(t *testing.T) {
	c := New("eth0", "v1.0.0")
	c.RecordTransition("Solicit", false)

	path := filepath.Join(t.TempDir(), "stats.json")
	if err := c.ExportJSON(path); err != nil {
		t.Fatalf("ExportJSON: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if snap.StateTransitions["Solicit"] != 1 {
		t.Errorf("decoded StateTransitions[Solicit] = %d, want 1", snap.StateTransitions["Solicit"])
	}
}

func TestExportCSV(t *testing.T) {
	c := New("eth0", "v1.0.0")
	c.RecordTransition("Solicit", false)

	path := filepath.Join(t.TempDir(), "stats.csv")
	if err := c.ExportCSV(path); err != nil {
		t.Fatalf("ExportCSV: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(rows) < 2 || rows[0][0] != "metric" {
		t.Errorf("rows = %v, want a header row plus data", rows)
	}
}
