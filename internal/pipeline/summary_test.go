package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadscore/internal/model"
)

func TestBuildSummary(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		counts model.LeadCounts
		want   model.Summary
	}{
		{
			name:   "three buckets",
			counts: model.LeadCounts{Total: 3, Processed: 3, High: 1, Medium: 1, Low: 1, ScoreSum: 145},
			want: model.Summary{
				TotalLeads: 3, ProcessedLeads: 3, ProcessedPercentage: 100,
				High:   model.Bucket{Count: 1, Percentage: 33},
				Medium: model.Bucket{Count: 1, Percentage: 33},
				Low:    model.Bucket{Count: 1, Percentage: 33},
				AverageScore: 48.33,
				Recent:       []model.RecentLead{},
			},
		},
		{
			name:   "nothing processed",
			counts: model.LeadCounts{Total: 4},
			want:   model.Summary{TotalLeads: 4, Recent: []model.RecentLead{}},
		},
		{
			name:   "empty",
			counts: model.LeadCounts{},
			want:   model.Summary{Recent: []model.RecentLead{}},
		},
		{
			name:   "partial processing rounds half up",
			counts: model.LeadCounts{Total: 8, Processed: 1, Low: 1, ScoreSum: 5},
			want: model.Summary{
				TotalLeads: 8, ProcessedLeads: 1, ProcessedPercentage: 13,
				Low:          model.Bucket{Count: 1, Percentage: 100},
				AverageScore: 5,
				Recent:       []model.RecentLead{},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, BuildSummary(tt.counts, nil))
		})
	}
}

type mockSummaryStore struct {
	mock.Mock
}

func (m *mockSummaryStore) LeadCounts(ctx context.Context) (model.LeadCounts, error) {
	args := m.Called(ctx)
	return args.Get(0).(model.LeadCounts), args.Error(1)
}

func (m *mockSummaryStore) RecentProcessed(ctx context.Context, n int) ([]model.RecentLead, error) {
	args := m.Called(ctx, n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.RecentLead), args.Error(1)
}

func TestAggregator_Summary(t *testing.T) {
	recent := []model.RecentLead{{ID: "l1", Score: 72, ProcessedAt: time.Now()}}
	st := new(mockSummaryStore)
	st.On("LeadCounts", mock.Anything).Return(model.LeadCounts{Total: 2, Processed: 1, High: 1, ScoreSum: 72}, nil)
	st.On("RecentProcessed", mock.Anything, RecentLimit).Return(recent, nil)

	s, err := NewAggregator(st).Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 50.0, s.ProcessedPercentage)
	assert.Equal(t, model.Bucket{Count: 1, Percentage: 100}, s.High)
	assert.Equal(t, 72.0, s.AverageScore)
	assert.Equal(t, recent, s.Recent)
	st.AssertExpectations(t)
}

func TestAggregator_StoreError(t *testing.T) {
	st := new(mockSummaryStore)
	st.On("LeadCounts", mock.Anything).Return(model.LeadCounts{}, errors.New("db down"))
	st.On("RecentProcessed", mock.Anything, RecentLimit).Return([]model.RecentLead{}, nil).Maybe()

	_, err := NewAggregator(st).Summary(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "summary: lead counts")
}
