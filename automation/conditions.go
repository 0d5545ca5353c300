package automation

import (
	"context"

	"propflow/models"
	"propflow/repository"
)

// EvaluateConditions decides whether a step's send conditions hold for a
// contact. Rate-threshold conditions are declared on the model but have no
// defined evaluation yet, so their presence is an error rather than a quiet
// pass.
func EvaluateConditions(ctx context.Context, comms repository.CommunicationRepository, step *models.SequenceStep, sequenceID, contactID uint) (bool, error) {
	cond := step.Conditions
	if cond.MinOpenRate != nil || cond.MinClickRate != nil {
		return false, ErrConditionUnsupported
	}
	if cond.RequiresResponse {
		responded, err := comms.HasResponse(ctx, contactID, sequenceID)
		if err != nil {
			return false, err
		}
		return responded, nil
	}
	return true, nil
}
