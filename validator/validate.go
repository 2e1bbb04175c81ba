package validator

import "errors"

// Validate checks that the keys of record are exactly the free variables of
// the template.
//
// Both directions are checked before returning:
//   - keys not in vars produce *ExtraParameterError
//   - vars not in keys produce *MissingParameterError
//
// When both are present the result joins the two errors, so errors.As finds
// either one and the message lists every offending name.
//
// Thread-safety: Pure function, safe for concurrent calls.
func Validate(template string, record map[string]any, vars VariableSet) error {
	keys := make(VariableSet, len(record))
	for k := range record {
		keys.Add(k)
	}

	var errs []error
	if extra := keys.Difference(vars); len(extra) > 0 {
		errs = append(errs, &ExtraParameterError{Template: template, Names: extra})
	}
	if missing := vars.Difference(keys); len(missing) > 0 {
		errs = append(errs, &MissingParameterError{Template: template, Names: missing})
	}
	return errors.Join(errs...)
}
