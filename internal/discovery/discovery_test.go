package discovery

import (
	"strings"
	"testing"
)

func TestInstanceName(t *testing.T) {
	if got := InstanceName("lab-pc"); got != "JointRelay-lab-pc" {
		t.Errorf("Expected JointRelay-lab-pc, got %q", got)
	}
	if got := InstanceName(""); got != "JointRelay-relay" {
		t.Errorf("Expected fallback instance name, got %q", got)
	}
}

func TestTXTRecordsDescribeEndpoint(t *testing.T) {
	records := strings.Join(TXTRecords(), ";")
	if !strings.Contains(records, "path=/ws") {
		t.Errorf("Expected websocket path in TXT records, got %q", records)
	}
}

func TestShutdownNilAdvertisement(t *testing.T) {
	var a *Advertisement
	a.Shutdown()
}
