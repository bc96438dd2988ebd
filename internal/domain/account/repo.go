package account

import (
	"context"
	"fmt"
	"sync"

	"github.com/amnandan9/Parkinsons-Detection-System/internal/platform/localstore"
)

// Repository holds registered accounts and the current session.
type Repository interface {
	List(ctx context.Context) ([]Account, error)
	Add(ctx context.Context, a Account) error
	// Remove deletes the account with the given id and reports whether one
	// existed.
	Remove(ctx context.Context, id string) (bool, error)
	Current(ctx context.Context) (*User, error)
	SetCurrent(ctx context.Context, u User) error
	ClearCurrent(ctx context.Context) error
}

type kvRepo struct {
	kv localstore.KV
	mu sync.Mutex
}

// NewKVRepo keeps accounts and the current user in the local store.
func NewKVRepo(kv localstore.KV) Repository {
	return &kvRepo{kv: kv}
}

func (r *kvRepo) List(_ context.Context) ([]Account, error) {
	return r.load()
}

func (r *kvRepo) Add(_ context.Context, a Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	accounts, err := r.load()
	if err != nil {
		return err
	}
	return r.save(append(accounts, a))
}

func (r *kvRepo) Remove(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	accounts, err := r.load()
	if err != nil {
		return false, err
	}
	kept := make([]Account, 0, len(accounts))
	for _, a := range accounts {
		if a.ID != id {
			kept = append(kept, a)
		}
	}
	if len(kept) == len(accounts) {
		return false, nil
	}
	return true, r.save(kept)
}

func (r *kvRepo) Current(_ context.Context) (*User, error) {
	var u User
	ok, err := r.kv.Get(localstore.KeyCurrentUser, &u)
	if err != nil {
		return nil, fmt.Errorf("load current user: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *kvRepo) SetCurrent(_ context.Context, u User) error {
	if err := r.kv.Set(localstore.KeyCurrentUser, u); err != nil {
		return fmt.Errorf("save current user: %w", err)
	}
	return nil
}

func (r *kvRepo) ClearCurrent(_ context.Context) error {
	return r.kv.Delete(localstore.KeyCurrentUser)
}

func (r *kvRepo) load() ([]Account, error) {
	var accounts []Account
	if _, err := r.kv.Get(localstore.KeyUsers, &accounts); err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}
	if accounts == nil {
		accounts = []Account{}
	}
	return accounts, nil
}

func (r *kvRepo) save(accounts []Account) error {
	if err := r.kv.Set(localstore.KeyUsers, accounts); err != nil {
		return fmt.Errorf("save accounts: %w", err)
	}
	return nil
}
