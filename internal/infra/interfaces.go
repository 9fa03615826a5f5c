package infra

import "context"

type UserClientInterface interface {
	GetUserById(ctx context.Context, id uint64) (*UserInfo, error)
}

var _ UserClientInterface = (*UserClient)(nil)
