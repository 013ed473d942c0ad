package api

import "github.com/splitlease/proposals/internal/domain"

// ProposalService covers the proposal lifecycle used by ProposalHandler.
type ProposalService interface {
	domain.ProposalService
	domain.HistoryService
}

// MeetingService covers virtual meeting operations used by MeetingHandler.
type MeetingService = domain.MeetingService

// SweepService is the expiry entry point used by AdminHandler.
type SweepService = domain.SweepService
