package storage

import "github.com/milifusa/mumpabackend-sub000/internal"

type Repositories struct {
	Events   SleepEventRepository
	Children ChildRepository
	Users    UserRepository
}

func NewFileRepositories(usersFile, childrenFile, sleepFile string, logger internal.Logger) (*Repositories, error) {
	storage, err := NewFileStorage(usersFile, childrenFile, sleepFile, logger)
	if err != nil {
		return nil, err
	}
	return &Repositories{Events: storage, Children: storage, Users: storage}, nil
}

func NewPostgresRepositories(dsn string, logger internal.Logger) (*Repositories, error) {
	storage, err := NewPostgresStorage(dsn, logger)
	if err != nil {
		return nil, err
	}
	return &Repositories{Events: storage, Children: storage, Users: storage}, nil
}
