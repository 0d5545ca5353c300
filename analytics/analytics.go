// Package analytics aggregates the communication log into delivery and
// engagement reporting for the dashboard.
package analytics

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"propflow/models"
)

// FunnelCounts are raw counts over a slice of the communication log. The
// engagement columns count timestamps rather than statuses, so a clicked
// message still counts as delivered and opened.
type FunnelCounts struct {
	Total     int64 `json:"total"`
	Sent      int64 `json:"sent"`
	Delivered int64 `json:"delivered"`
	Opened    int64 `json:"opened"`
	Clicked   int64 `json:"clicked"`
	Responded int64 `json:"responded"`
	Bounced   int64 `json:"bounced"`
	Failed    int64 `json:"failed"`
	Skipped   int64 `json:"skipped"`
}

// Rates are the derived percentages, as fractions in [0,1]. Delivery and
// bounce rates are measured against sends; open, click and response rates
// against deliveries.
type Rates struct {
	DeliveryRate float64 `json:"delivery_rate"`
	OpenRate     float64 `json:"open_rate"`
	ClickRate    float64 `json:"click_rate"`
	ResponseRate float64 `json:"response_rate"`
	BounceRate   float64 `json:"bounce_rate"`
}

// ComputeRates derives engagement rates from funnel counts. Zero
// denominators yield zero rates rather than NaN.
func ComputeRates(c FunnelCounts) Rates {
	var r Rates
	if c.Sent > 0 {
		r.DeliveryRate = float64(c.Delivered) / float64(c.Sent)
		r.BounceRate = float64(c.Bounced) / float64(c.Sent)
	}
	if c.Delivered > 0 {
		r.OpenRate = float64(c.Opened) / float64(c.Delivered)
		r.ClickRate = float64(c.Clicked) / float64(c.Delivered)
		r.ResponseRate = float64(c.Responded) / float64(c.Delivered)
	}
	return r
}

// SequenceReport is the full per-sequence dashboard payload.
type SequenceReport struct {
	SequenceID uint         `json:"sequence_id"`
	Counts     FunnelCounts `json:"counts"`
	Rates      Rates        `json:"rates"`
	TotalCost  float64      `json:"total_cost"`
	Steps      []StepStats  `json:"steps"`
}

// StepStats breaks a sequence's numbers down per step.
type StepStats struct {
	StepID     uint   `json:"step_id"`
	StepNumber int    `json:"step_number"`
	Channel    string `json:"channel"`
	FunnelCounts
	Rates Rates `json:"rates"`
}

// ChannelStats breaks an agent's numbers down per channel with spend.
type ChannelStats struct {
	Channel string `json:"channel"`
	FunnelCounts
	Rates     Rates   `json:"rates"`
	TotalCost float64 `json:"total_cost"`
}

// Service runs the aggregation queries. Counts come straight from SQL so
// large logs never load into memory.
type Service struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewService(db *gorm.DB, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{db: db, logger: logger}
}

const funnelColumns = `
	COUNT(*) AS total,
	COUNT(sent_at) AS sent,
	COUNT(delivered_at) AS delivered,
	COUNT(opened_at) AS opened,
	COUNT(clicked_at) AS clicked,
	COUNT(responded_at) AS responded,
	SUM(CASE WHEN status = 'bounced' THEN 1 ELSE 0 END) AS bounced,
	SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END) AS failed,
	SUM(CASE WHEN status = 'skipped' THEN 1 ELSE 0 END) AS skipped`

// AgentFunnel returns the agent-wide funnel over an optional time window.
func (s *Service) AgentFunnel(ctx context.Context, agentID uint, since *time.Time) (FunnelCounts, Rates, error) {
	q := s.db.WithContext(ctx).Model(&models.Communication{}).
		Select(funnelColumns).
		Where("agent_id = ?", agentID)
	if since != nil {
		q = q.Where("created_at >= ?", *since)
	}

	var counts FunnelCounts
	if err := q.Scan(&counts).Error; err != nil {
		return FunnelCounts{}, Rates{}, err
	}
	return counts, ComputeRates(counts), nil
}

// SequenceReport aggregates one sequence: overall funnel, spend, and a
// per-step breakdown ordered by step number.
func (s *Service) SequenceReport(ctx context.Context, agentID, sequenceID uint) (*SequenceReport, error) {
	report := &SequenceReport{SequenceID: sequenceID}

	err := s.db.WithContext(ctx).Model(&models.Communication{}).
		Select(funnelColumns).
		Where("agent_id = ? AND sequence_id = ?", agentID, sequenceID).
		Scan(&report.Counts).Error
	if err != nil {
		return nil, err
	}
	report.Rates = ComputeRates(report.Counts)

	err = s.db.WithContext(ctx).Model(&models.Communication{}).
		Select("COALESCE(SUM(cost), 0)").
		Where("agent_id = ? AND sequence_id = ?", agentID, sequenceID).
		Scan(&report.TotalCost).Error
	if err != nil {
		return nil, err
	}

	rows := []StepStats{}
	err = s.db.WithContext(ctx).Model(&models.Communication{}).
		Select("communications.step_id AS step_id, sequence_steps.step_number AS step_number, communications.channel AS channel,"+funnelColumns).
		Joins("JOIN sequence_steps ON sequence_steps.id = communications.step_id").
		Where("communications.agent_id = ? AND communications.sequence_id = ?", agentID, sequenceID).
		Group("communications.step_id, sequence_steps.step_number, communications.channel").
		Order("step_number").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].Rates = ComputeRates(rows[i].FunnelCounts)
	}
	report.Steps = rows
	return report, nil
}

// ChannelBreakdown aggregates the agent's log per channel, including spend.
func (s *Service) ChannelBreakdown(ctx context.Context, agentID uint) ([]ChannelStats, error) {
	rows := []ChannelStats{}
	err := s.db.WithContext(ctx).Model(&models.Communication{}).
		Select("channel,"+funnelColumns+", COALESCE(SUM(cost), 0) AS total_cost").
		Where("agent_id = ?", agentID).
		Group("channel").
		Order("channel").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].Rates = ComputeRates(rows[i].FunnelCounts)
	}
	return rows, nil
}

// TemplateStats ranks an agent's templates by engagement.
type TemplateStats struct {
	TemplateID   uint   `json:"template_id"`
	TemplateName string `json:"template_name"`
	Channel      string `json:"channel"`
	FunnelCounts
	Rates Rates `json:"rates"`
}

// TemplateBreakdown aggregates per template across all sequences.
func (s *Service) TemplateBreakdown(ctx context.Context, agentID uint) ([]TemplateStats, error) {
	rows := []TemplateStats{}
	err := s.db.WithContext(ctx).Model(&models.Communication{}).
		Select("message_templates.id AS template_id, message_templates.name AS template_name, message_templates.channel AS channel,"+funnelColumns).
		Joins("JOIN sequence_steps ON sequence_steps.id = communications.step_id").
		Joins("JOIN message_templates ON message_templates.id = sequence_steps.template_id").
		Where("communications.agent_id = ?", agentID).
		Group("message_templates.id, message_templates.name, message_templates.channel").
		Order("sent DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].Rates = ComputeRates(rows[i].FunnelCounts)
	}
	return rows, nil
}

// SpendSummary is the agent's message spend for a period.
type SpendSummary struct {
	TotalCost    float64 `json:"total_cost"`
	MessageCount int64   `json:"message_count"`
}

// Spend totals paid sends for the agent since the given time.
func (s *Service) Spend(ctx context.Context, agentID uint, since time.Time) (*SpendSummary, error) {
	var out SpendSummary
	err := s.db.WithContext(ctx).Model(&models.Communication{}).
		Select("COALESCE(SUM(cost), 0) AS total_cost, COUNT(sent_at) AS message_count").
		Where("agent_id = ? AND cost > 0 AND created_at >= ?", agentID, since).
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return &out, nil
}
