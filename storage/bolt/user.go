package boltdb

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.etcd.io/bbolt"

	"github.com/trezcool/ushauri/core"
	"github.com/trezcool/ushauri/core/user"
)

// storedUser keeps the password hash which is never serialized in API responses.
type storedUser struct {
	user.User
	PasswordHash []byte `json:"password_hash"`
}

func fromStored(su storedUser) user.User {
	usr := su.User
	usr.PasswordHash = su.PasswordHash
	if usr.Roles == nil {
		usr.Roles = []string{}
	}
	return usr
}

type userRepository struct {
	store *Store
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(store *Store) *userRepository {
	return &userRepository{store: store}
}

func (repo *userRepository) all() ([]user.User, error) {
	var users []user.User
	err := repo.store.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketUsers).ForEach(func(k, v []byte) error {
			var su storedUser
			if err := json.Unmarshal(v, &su); err != nil {
				return errors.Wrapf(err, "decoding user %s", k)
			}
			users = append(users, fromStored(su))
			return nil
		})
	})
	return users, err
}

func (repo *userRepository) CheckUsernameUniqueness(_ context.Context, username, email string, excludedUsers []user.User) error {
	users, err := repo.all()
	if err != nil {
		return err
	}
	excluded := make(map[string]struct{}, len(excludedUsers))
	for _, u := range excludedUsers {
		excluded[u.ID] = struct{}{}
	}
	for _, usr := range users {
		if _, ok := excluded[usr.ID]; ok {
			continue
		}
		if username != "" && usr.Username == username {
			return user.ErrUsernameExists
		}
		if email != "" && usr.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	err := repo.store.db.Update(func(tx *bbolt.Tx) error {
		return put(tx, bucketUsers, usr.ID, storedUser{User: usr, PasswordHash: usr.PasswordHash})
	})
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo *userRepository) QueryUsers(_ context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	users, err := repo.all()
	if err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users = user.Filter(users, filter)
	user.Sort(users, ordering)
	if users == nil {
		users = []user.User{}
	}
	return users, nil
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter) (user.User, error) {
	if filter.ID != "" {
		var (
			su    storedUser
			found bool
		)
		err := repo.store.db.View(func(tx *bbolt.Tx) (err error) {
			found, err = get(tx, bucketUsers, filter.ID, &su)
			return err
		})
		if err != nil {
			return user.User{}, errors.Wrap(err, "finding user")
		}
		if !found {
			return user.User{}, user.ErrNotFound
		}
		return fromStored(su), nil
	}

	users, err := repo.all()
	if err != nil {
		return user.User{}, errors.Wrap(err, "finding user")
	}
	for _, usr := range users {
		if filter.Matches(usr) {
			return usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	err := repo.store.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketUsers).Get([]byte(usr.ID)) == nil {
			return user.ErrNotFound
		}
		return put(tx, bucketUsers, usr.ID, storedUser{User: usr, PasswordHash: usr.PasswordHash})
	})
	if err != nil {
		if err == user.ErrNotFound {
			return user.User{}, err
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	return usr, nil
}

func (repo *userRepository) DeleteUsersByID(_ context.Context, ids []string) (int, error) {
	var cnt int
	err := repo.store.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketUsers)
		for _, id := range ids {
			key := []byte(id)
			if b.Get(key) == nil {
				continue
			}
			if err := b.Delete(key); err != nil {
				return err
			}
			// a deleted student takes their records along
			for _, bucket := range [][]byte{bucketSchedules, bucketPlans, bucketBacklogs} {
				if err := tx.Bucket(bucket).Delete(key); err != nil {
					return err
				}
			}
			cnt++
		}
		return nil
	})
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	return cnt, nil
}
