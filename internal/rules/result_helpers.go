package rules

func NewResult(ruleID string, status Status, message string) Result {
	return Result{
		RuleID:  ruleID,
		Status:  status,
		Message: message,
	}
}

func PassResult(ruleID string) Result {
	return NewResult(ruleID, StatusPassed, "")
}

func PassResultWithMessage(ruleID string, message string) Result {
	return NewResult(ruleID, StatusPassed, message)
}

func FailResult(ruleID string, message string) Result {
	return NewResult(ruleID, StatusFailed, message)
}

func NotApplicableResult(ruleID string, message string) Result {
	return NewResult(ruleID, StatusNotApplicable, message)
}

func ErrorResult(ruleID string, message string) Result {
	return NewResult(ruleID, StatusError, message)
}

func FailResultWithEvidence(ruleID string, message string, evidence map[string]string) Result {
	res := NewResult(ruleID, StatusFailed, message)
	res.Evidence = evidence
	return res
}
