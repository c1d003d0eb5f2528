package app

import (
	"context"
	"time"

	"storyforest/api/internal/story"
)

// UserProfile is the public face of a user. Counts cover only the nodes
// the requesting viewer may see.
type UserProfile struct {
	story.Author
	Role       string    `json:"role"`
	CreatedAt  time.Time `json:"createdAt"`
	NodesCount int       `json:"nodesCount"`
	TotalLikes int       `json:"totalLikes"`
}

func (s *Service) GetUserProfile(ctx context.Context, session Session, userID int64) (UserProfile, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return UserProfile{}, err
	}
	stats, err := s.store.UserStats(ctx, userID, story.VisibilityScope(session.Viewer()))
	if err != nil {
		return UserProfile{}, err
	}
	return UserProfile{
		Author:     user.Author(),
		Role:       user.Role,
		CreatedAt:  user.CreatedAt,
		NodesCount: stats.NodesCount,
		TotalLikes: stats.TotalLikes,
	}, nil
}
