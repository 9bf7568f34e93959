package wizard

// Step names one page of the registration wizard.
type Step string

const (
	StepIndex                  Step = "index"
	StepParQ                   Step = "par_form"
	StepRegistration           Step = "registration"
	StepParentDetails          Step = "parent_details"
	StepAddChildren            Step = "add_children"
	StepPreviousTraining       Step = "previous_training"
	StepMedicalCondition       Step = "medical_condition"
	StepPhysicalReadiness      Step = "physical_readiness"
	StepMembershipReactivation Step = "membership_reactivation"
	StepUploadID               Step = "upload_id"
	StepIndemnity              Step = "indemnity"
	StepIndemnityRejected      Step = "indemnity_rejected"
	StepPopia                  Step = "popia"
	StepPopiaRejected          Step = "popia_rejected"
	StepSummary                Step = "summary"
	StepCompletion             Step = "completion"
	StepPaymentSuccess         Step = "payment_success"
	StepPaymentCancelled       Step = "payment_cancelled"
)

var stepPaths = map[Step]string{
	StepIndex:                  "/",
	StepParQ:                   "/par-form",
	StepRegistration:           "/registration",
	StepParentDetails:          "/parent-details",
	StepAddChildren:            "/add-children",
	StepPreviousTraining:       "/previous-training",
	StepMedicalCondition:       "/medical-condition",
	StepPhysicalReadiness:      "/physical-readiness",
	StepMembershipReactivation: "/membership-reactivation",
	StepUploadID:               "/upload-id",
	StepIndemnity:              "/indemnity",
	StepIndemnityRejected:      "/indemnity-rejected",
	StepPopia:                  "/popia",
	StepPopiaRejected:          "/popia-rejected",
	StepSummary:                "/summary",
	StepCompletion:             "/completion",
	StepPaymentSuccess:         "/payment/success",
	StepPaymentCancelled:       "/payment/cancelled",
}

// Path returns the route that renders the step.
func (s Step) Path() string {
	if p, ok := stepPaths[s]; ok {
		return p
	}
	return "/"
}

// StepForPath maps a route back to its step.
func StepForPath(path string) (Step, bool) {
	for s, p := range stepPaths {
		if p == path {
			return s, true
		}
	}
	return "", false
}

// Steps lists every wizard step in flow order.
func Steps() []Step {
	return []Step{
		StepIndex, StepParQ, StepRegistration, StepParentDetails, StepAddChildren,
		StepPreviousTraining, StepMedicalCondition, StepPhysicalReadiness,
		StepMembershipReactivation, StepUploadID, StepIndemnity, StepIndemnityRejected,
		StepPopia, StepPopiaRejected, StepSummary, StepCompletion,
		StepPaymentSuccess, StepPaymentCancelled,
	}
}

// editable reports whether the step collects input that is frozen once a membership is issued.
func (s Step) editable() bool {
	switch s {
	case StepIndex, StepCompletion, StepPaymentSuccess, StepPaymentCancelled:
		return false
	}
	return true
}
