package services

import "context"

// openClubPermissions admits every club. Deployments with subscription tiers
// substitute their own ClubPermissionChecker at wiring time.
type openClubPermissions struct{}

func NewOpenClubPermissions() ClubPermissionChecker {
	return openClubPermissions{}
}

func (openClubPermissions) CanCreateTournament(_ context.Context, _ int, _ bool) (bool, string, error) {
	return true, "", nil
}
