package reconcile

// Controller is the nameserver control capability the applier drives.
// Operations are issued one at a time; implementations need not be safe for
// concurrent use.
type Controller interface {
	AddZone(zone, pattern string) error
	DelZone(zone string) error
	ChangeZone(zone, pattern string) error
}

// Result records the outcome of one control operation.
type Result struct {
	Zone    string
	Op      string // "addzone", "delzone" or "changezone"
	Pattern string
	Err     error
}

// Report is the per-zone outcome list for one applied plan.
type Report struct {
	Results []Result
}

// Errs returns the errors from every failed operation.
func (r *Report) Errs() []error {
	var errs []error
	for _, res := range r.Results {
		if res.Err != nil {
			errs = append(errs, res.Err)
		}
	}
	return errs
}

// Apply issues the plan's operations against the controller, removals
// first, then additions, then updates, in the plan's deterministic order.
// A failed operation is recorded against its zone and never blocks the
// remaining operations: the full plan is always attempted.
func Apply(plan *Plan, ctrl Controller) *Report {
	report := &Report{}
	for _, zone := range plan.Remove {
		report.Results = append(report.Results, Result{
			Zone: zone,
			Op:   "delzone",
			Err:  ctrl.DelZone(zone),
		})
	}
	for _, c := range plan.Add {
		report.Results = append(report.Results, Result{
			Zone:    c.Zone,
			Op:      "addzone",
			Pattern: c.Pattern,
			Err:     ctrl.AddZone(c.Zone, c.Pattern),
		})
	}
	for _, c := range plan.Update {
		report.Results = append(report.Results, Result{
			Zone:    c.Zone,
			Op:      "changezone",
			Pattern: c.Pattern,
			Err:     ctrl.ChangeZone(c.Zone, c.Pattern),
		})
	}
	return report
}
