package domain

import "testing"

func TestCheckViolation(t *testing.T) {
	tests := []struct {
		name      string
		check     CheckResult
		violation bool
	}{
		{"expected and reachable", CheckResult{Expected: true, Reachable: true}, false},
		{"isolated and unreachable", CheckResult{Expected: false, Reachable: false}, false},
		{"leak across isolation", CheckResult{Expected: false, Reachable: true}, true},
		{"expected path down", CheckResult{Expected: true, Reachable: false}, true},
		{"probe error is not a violation", CheckResult{Expected: true, Reachable: false, Error: "ssh: dial timeout"}, false},
	}

	for _, tt := range tests {
		if got := tt.check.Violation(); got != tt.violation {
			t.Errorf("%s: Violation() = %v, want %v", tt.name, got, tt.violation)
		}
	}
}

func TestVerificationRunCounters(t *testing.T) {
	run := NewVerificationRun("run-1", RunSourceProbe)

	run.AddCheck(CheckResult{Expected: true, Reachable: true})
	run.AddCheck(CheckResult{Expected: false, Reachable: false})
	run.AddCheck(CheckResult{Expected: false, Reachable: true})
	run.AddCheck(CheckResult{Expected: true, Reachable: false, Error: "connect failed"})

	if run.Total != 4 {
		t.Errorf("Total = %d, want 4", run.Total)
	}
	if run.Passed != 2 {
		t.Errorf("Passed = %d, want 2", run.Passed)
	}
	if run.Violations != 1 {
		t.Errorf("Violations = %d, want 1", run.Violations)
	}
	if run.Errors != 1 {
		t.Errorf("Errors = %d, want 1", run.Errors)
	}
	if run.Clean() {
		t.Error("Clean() should be false with violations present")
	}

	for _, check := range run.Checks {
		if check.RunID != "run-1" {
			t.Errorf("check RunID = %q, want run-1", check.RunID)
		}
	}

	if run.FinishedAt != nil {
		t.Error("FinishedAt should be nil before Finish()")
	}
	run.Finish()
	if run.FinishedAt == nil {
		t.Error("FinishedAt should be set after Finish()")
	}
}

func TestDeployPlan(t *testing.T) {
	plan := NewDeployPlan("/tmp/build", 5000, 5001)

	if len(plan.Assignments) != 2 {
		t.Fatalf("plan has %d assignments, want 2", len(plan.Assignments))
	}

	fsm := plan.AssignmentFor(ClassFSM)
	if fsm == nil {
		t.Fatal("no assignment for fsm class")
	}
	if fsm.ServicePort != 5000 {
		t.Errorf("fsm port = %d, want 5000", fsm.ServicePort)
	}
	if len(fsm.Files) != 2 {
		t.Errorf("fsm assignment has %d files, want 2", len(fsm.Files))
	}
	if fsm.DeployScript != "/root/fsm-deploy.sh" {
		t.Errorf("fsm deploy script = %q, want /root/fsm-deploy.sh", fsm.DeployScript)
	}

	if plan.AssignmentFor(ClassNonSCS) != nil {
		t.Error("non-scs nodes should have no assignment")
	}
	if plan.AssignmentFor(ClassNonFSM) != nil {
		t.Error("non-fsm nodes should have no assignment")
	}

	scs := plan.AssignmentFor(ClassSCS)
	if scs.ServicePort != 5001 {
		t.Errorf("scs port = %d, want 5001", scs.ServicePort)
	}
}
