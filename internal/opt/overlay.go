package opt

import (
    "encoding/csv"
    "fmt"
    "io"
    "math"
    "strconv"
    "strings"
)

// OverlayRule is one parsed row of an operator constraint file. Empty
// Destination/Mode and a nil Period are wildcards.
type OverlayRule struct {
    Line        int
    Origin      string
    Destination string
    Mode        string
    Action      string
    Value       float64
    Period      *int
}

const (
    ActionBan      = "ban"
    ActionMaxTrips = "max_trips"
    ActionMinTrips = "min_trips"
    ActionMaxQty   = "max_qty"
    ActionMinQty   = "min_qty"
)

var overlayActions = map[string]bool{
    ActionBan: true, ActionMaxTrips: true, ActionMinTrips: true,
    ActionMaxQty: true, ActionMinQty: true,
}

// ParseOverlay reads the CSV constraint file. Malformed rows are reported,
// not fatal: every valid row still yields a rule. Columns are
// origin,destination,mode,action,value,period with an optional header.
func ParseOverlay(r io.Reader) ([]OverlayRule, []string) {
    cr := csv.NewReader(r)
    cr.FieldsPerRecord = -1
    cr.TrimLeadingSpace = true

    var rules []OverlayRule
    var errs []string
    line := 0
    for {
        rec, err := cr.Read()
        if err == io.EOF {
            break
        }
        line++
        if err != nil {
            errs = append(errs, fmt.Sprintf("row %d: %v", line, err))
            continue
        }
        if line == 1 && len(rec) > 0 && strings.EqualFold(strings.TrimSpace(rec[0]), "origin") {
            continue // header
        }
        if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
            continue
        }
        if len(rec) < 4 {
            errs = append(errs, fmt.Sprintf("row %d: expected origin,destination,mode,action,value,period; got %d fields", line, len(rec)))
            continue
        }
        for i := range rec {
            rec[i] = strings.TrimSpace(rec[i])
        }
        rule := OverlayRule{
            Line:        line,
            Origin:      rec[0],
            Destination: rec[1],
            Mode:        rec[2],
            Action:      strings.ToLower(rec[3]),
        }
        if rule.Origin == "" {
            errs = append(errs, fmt.Sprintf("row %d: origin is required", line))
            continue
        }
        if !overlayActions[rule.Action] {
            errs = append(errs, fmt.Sprintf("row %d: unknown action %q", line, rec[3]))
            continue
        }
        if rule.Action != ActionBan {
            if len(rec) < 5 || rec[4] == "" {
                errs = append(errs, fmt.Sprintf("row %d: action %s requires a value", line, rule.Action))
                continue
            }
            v, err := strconv.ParseFloat(rec[4], 64)
            if err != nil || v < 0 {
                errs = append(errs, fmt.Sprintf("row %d: invalid value %q", line, rec[4]))
                continue
            }
            rule.Value = v
        }
        if len(rec) >= 6 && rec[5] != "" {
            p, err := strconv.Atoi(rec[5])
            if err != nil || p < 0 {
                errs = append(errs, fmt.Sprintf("row %d: invalid period %q", line, rec[5]))
                continue
            }
            rule.Period = &p
        }
        rules = append(rules, rule)
    }
    return rules, errs
}

// ApplyOverlay tightens variable bounds on the built model according to the
// rules. Rules that match nothing are reported back so the caller can echo
// them to the operator. Bounds only ever tighten; a rule can never relax the
// structural limits of the base model.
func (m *Model) ApplyOverlay(rules []OverlayRule) (applied int, errs []string) {
    ds := m.Data
    for _, rule := range rules {
        if rule.Period != nil && *rule.Period >= ds.T {
            errs = append(errs, fmt.Sprintf("row %d: period %d outside horizon of %d", rule.Line, *rule.Period, ds.T))
            continue
        }
        matched := false
        for ri := range ds.Routes {
            r := &ds.Routes[ri]
            if r.OriginID != rule.Origin {
                continue
            }
            if rule.Destination != "" && r.DestinationID != rule.Destination {
                continue
            }
            for mi := range r.Modes {
                mode := r.Modes[mi].Mode
                if rule.Mode != "" && mode != rule.Mode {
                    continue
                }
                for t := 0; t < ds.T; t++ {
                    if rule.Period != nil && *rule.Period != t {
                        continue
                    }
                    m.applyRule(rule, t, r.ID, mode)
                    matched = true
                }
            }
        }
        if matched {
            applied++
        } else {
            errs = append(errs, fmt.Sprintf("row %d: no route matches origin=%s destination=%s mode=%s", rule.Line, rule.Origin, orAny(rule.Destination), orAny(rule.Mode)))
        }
    }
    return applied, errs
}

func orAny(s string) string {
    if s == "" {
        return "*"
    }
    return s
}

func (m *Model) applyRule(rule OverlayRule, t int, routeID, mode string) {
    k := arcKey{t, routeID, mode}
    tc := m.trips[k]
    qc := m.qty[k]
    switch rule.Action {
    case ActionBan:
        m.vars[tc].Upper = 0
        m.vars[qc].Upper = 0
        if uc, ok := m.used[k]; ok {
            m.vars[uc].Upper = 0
        }
    case ActionMaxTrips:
        m.vars[tc].Upper = math.Min(m.vars[tc].Upper, math.Floor(rule.Value))
    case ActionMinTrips:
        m.vars[tc].Lower = math.Max(m.vars[tc].Lower, math.Ceil(rule.Value))
    case ActionMaxQty:
        m.vars[qc].Upper = math.Min(m.vars[qc].Upper, rule.Value)
    case ActionMinQty:
        m.vars[qc].Lower = math.Max(m.vars[qc].Lower, rule.Value)
    }
}
