package opt

import (
    "strings"
    "testing"
)

func TestParseOverlay(t *testing.T) {
    in := strings.Join([]string{
        "origin,destination,mode,action,value,period",
        "iu1,gu1,rail,max_trips,3,1",
        "iu1,,road,max_qty,250,",
        "iu1,gu1,,ban,,",
        "iu1,gu1,rail,min_qty,60,0",
    }, "\n")
    rules, errs := ParseOverlay(strings.NewReader(in))
    if len(errs) != 0 { t.Fatalf("errors: %v", errs) }
    if len(rules) != 4 { t.Fatalf("rules: got %d, want 4", len(rules)) }
    if rules[0].Action != ActionMaxTrips || rules[0].Value != 3 || rules[0].Period == nil || *rules[0].Period != 1 {
        t.Fatalf("rule 0: %+v", rules[0])
    }
    if rules[1].Destination != "" || rules[1].Period != nil { t.Fatalf("rule 1 wildcards: %+v", rules[1]) }
    if rules[2].Mode != "" || rules[2].Action != ActionBan { t.Fatalf("rule 2: %+v", rules[2]) }
}

func TestParseOverlayCollectsRowErrors(t *testing.T) {
    in := strings.Join([]string{
        "iu1,gu1,rail,teleport,5,0",
        "iu1,gu1,rail,max_trips,abc,0",
        ",gu1,rail,ban,,",
        "iu1,gu1,rail,max_qty,100,-2",
        "iu1,gu1,rail,min_trips,2,1",
    }, "\n")
    rules, errs := ParseOverlay(strings.NewReader(in))
    if len(rules) != 1 { t.Fatalf("rules: got %d, want 1 surviving", len(rules)) }
    if len(errs) != 4 { t.Fatalf("errors: got %d, want 4: %v", len(errs), errs) }
    for _, e := range errs {
        if !strings.HasPrefix(e, "row ") { t.Fatalf("error without row ref: %q", e) }
    }
}

func TestApplyOverlayBounds(t *testing.T) {
    m, err := Build(smallDataset(), nil)
    if err != nil { t.Fatalf("Build: %v", err) }
    rules, _ := ParseOverlay(strings.NewReader("iu1,gu1,rail,max_trips,2,0\niu1,,road,ban,,\n"))
    applied, errs := m.ApplyOverlay(rules)
    if applied != 2 || len(errs) != 0 { t.Fatalf("apply: %d %v", applied, errs) }

    tc, _ := m.TripsCol(0, "r1", "rail")
    if up := m.Vars()[tc].Upper; up != 2 { t.Fatalf("rail trips upper: got %g, want 2", up) }
    tc1, _ := m.TripsCol(1, "r1", "rail")
    if up := m.Vars()[tc1].Upper; up == 2 { t.Fatal("period wildcard must not leak to period 1") }
    for tt := 0; tt < 2; tt++ {
        qc, _ := m.QtyCol(tt, "r1", "road")
        if up := m.Vars()[qc].Upper; up != 0 { t.Fatalf("road qty upper p%d: got %g, want 0", tt, up) }
    }
}

func TestApplyOverlayUnmatched(t *testing.T) {
    m, err := Build(smallDataset(), nil)
    if err != nil { t.Fatalf("Build: %v", err) }
    rules, _ := ParseOverlay(strings.NewReader("gu1,iu1,rail,ban,,\niu1,gu1,rail,max_trips,4,9\n"))
    applied, errs := m.ApplyOverlay(rules)
    if applied != 0 { t.Fatalf("applied: got %d, want 0", applied) }
    if len(errs) != 2 { t.Fatalf("errors: %v", errs) }
}

func TestApplyOverlayOnlyTightens(t *testing.T) {
    m, err := Build(smallDataset(), nil)
    if err != nil { t.Fatalf("Build: %v", err) }
    tc, _ := m.TripsCol(0, "r1", "rail")
    base := m.Vars()[tc].Upper
    rules, _ := ParseOverlay(strings.NewReader("iu1,gu1,rail,max_trips,99,\n"))
    m.ApplyOverlay(rules)
    if up := m.Vars()[tc].Upper; up != base { t.Fatalf("bound relaxed: %g -> %g", base, up) }
}
