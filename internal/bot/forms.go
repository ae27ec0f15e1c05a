package bot

import "github.com/qmuntal/stateless"

type trigger string

const (
	triggerAnswer trigger = "answer"
	triggerSkip   trigger = "skip"
)

type edge struct {
	on trigger
	to Step
}

// stepGraphs declares every form. Only steps with a skip edge may be skipped.
var stepGraphs = map[Form]map[Step][]edge{
	FormCustomerCreate: {
		StepFirstName: {{triggerAnswer, StepLastName}},
		StepLastName:  {{triggerAnswer, StepEmail}, {triggerSkip, StepEmail}},
		StepEmail:     {{triggerAnswer, StepPhone}, {triggerSkip, StepPhone}},
		StepPhone:     {{triggerAnswer, StepSubmit}, {triggerSkip, StepSubmit}},
	},
	FormCustomerFilter: {
		StepFirstName: {{triggerAnswer, StepLastName}, {triggerSkip, StepLastName}},
		StepLastName:  {{triggerAnswer, StepEmail}, {triggerSkip, StepEmail}},
		StepEmail:     {{triggerAnswer, StepSubmit}, {triggerSkip, StepSubmit}},
	},
	FormOrderCreate: {
		StepCustomerID: {{triggerAnswer, StepNumber}},
		StepNumber:     {{triggerAnswer, StepItems}, {triggerSkip, StepItems}},
		StepItems:      {{triggerAnswer, StepSubmit}},
	},
	FormOrderBrowse: {
		StepCustomerID: {{triggerAnswer, StepSubmit}},
	},
	FormPaymentCreate: {
		StepOrderID: {{triggerAnswer, StepAmount}},
		StepAmount:  {{triggerAnswer, StepType}},
		StepType:    {{triggerAnswer, StepSubmit}, {triggerSkip, StepSubmit}},
	},
}

// firstSteps is where each form starts.
var firstSteps = map[Form]Step{
	FormCustomerCreate: StepFirstName,
	FormCustomerFilter: StepFirstName,
	FormOrderCreate:    StepCustomerID,
	FormOrderBrowse:    StepCustomerID,
	FormPaymentCreate:  StepOrderID,
}

func machine(form Form, at Step) *stateless.StateMachine {
	m := stateless.NewStateMachine(at)
	for step, edges := range stepGraphs[form] {
		cfg := m.Configure(step)
		for _, e := range edges {
			cfg.Permit(e.on, e.to)
		}
	}
	return m
}

// advance fires t from step and returns the destination. ok is false when t is not permitted.
func advance(form Form, step Step, t trigger) (next Step, ok bool) {
	m := machine(form, step)
	if err := m.Fire(t); err != nil {
		return step, false
	}
	next, ok = m.MustState().(Step)
	if !ok {
		return step, false
	}
	return next, true
}

func canSkip(form Form, step Step) bool {
	permitted, err := machine(form, step).CanFire(triggerSkip)
	return err == nil && permitted
}
