package data

import (
	"context"

	"github.com/butlerbot/relay/internal/biz/domain"
	"github.com/butlerbot/relay/internal/biz/repo"
	"github.com/butlerbot/relay/internal/infra/feishu"
)

// feishuRepo implements delivery and member lookup over Feishu
type feishuRepo struct {
	client *feishu.Client
}

// FeishuRepo is both the outbound transport and the member directory
type FeishuRepo interface {
	repo.DeliveryRepo
	repo.MemberRepo
}

// NewFeishuRepo creates a new Feishu repository
func NewFeishuRepo(client *feishu.Client) FeishuRepo {
	return &feishuRepo{client: client}
}

// Deliver sends Bot text to the chat
func (r *feishuRepo) Deliver(ctx context.Context, chatID, text string) error {
	return r.client.SendText(ctx, chatID, text)
}

// GetChatMembers gets chat member list
func (r *feishuRepo) GetChatMembers(ctx context.Context, chatID string) ([]domain.Member, error) {
	members, err := r.client.GetChatMembers(ctx, chatID)
	if err != nil {
		return nil, err
	}

	result := make([]domain.Member, 0, len(members))
	for _, m := range members {
		result = append(result, domain.Member{
			UserID: m.MemberID,
			Name:   m.Name,
		})
	}
	return result, nil
}
