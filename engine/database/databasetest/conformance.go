// Package databasetest holds the behaviour every database backend must share.
package databasetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"registrar/engine/database"
)

// Run executes the conformance suite against databases built by open.
func Run(t *testing.T, open func(t *testing.T) database.Database) {
	suite.Run(t, &conformance{open: open})
}

type conformance struct {
	suite.Suite
	open func(t *testing.T) database.Database
	db   database.Database
	ctx  context.Context
}

func (s *conformance) SetupTest() {
	s.ctx = context.Background()
	s.db = s.open(s.T())
}

func (s *conformance) TearDownTest() {
	s.Require().NoError(s.db.Close())
}

func (s *conformance) TestPutThenGet() {
	sc := s.db.Scope(database.PendingIdentities)
	s.Require().NoError(sc.Put(s.ctx, "5Grwva", []byte(`{"a":1}`)))
	v, ok, err := sc.Get(s.ctx, "5Grwva")
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Equal(`{"a":1}`, string(v))
}

func (s *conformance) TestPutOverwrites() {
	sc := s.db.Scope(database.PendingIdentities)
	s.Require().NoError(sc.Put(s.ctx, "k", []byte("one")))
	s.Require().NoError(sc.Put(s.ctx, "k", []byte("two")))
	all, err := sc.All(s.ctx)
	s.Require().NoError(err)
	s.Equal([]database.Entry{{Key: "k", Value: []byte("two")}}, all)
}

func (s *conformance) TestMissingKey() {
	_, ok, err := s.db.Scope(database.ExternalRooms).Get(s.ctx, "nobody")
	s.Require().NoError(err)
	s.False(ok)
}

func (s *conformance) TestScopesAreIsolated() {
	a := s.db.Scope(database.PendingIdentities)
	b := s.db.Scope(database.ExternalRooms)
	s.Require().NoError(a.Put(s.ctx, "k", []byte("a")))
	all, err := b.All(s.ctx)
	s.Require().NoError(err)
	s.Empty(all)
}

func (s *conformance) TestDelete() {
	sc := s.db.Scope(database.PendingIdentities)
	s.Require().NoError(sc.Put(s.ctx, "k", []byte("v")))
	s.Require().NoError(sc.Delete(s.ctx, "k"))
	s.Require().NoError(sc.Delete(s.ctx, "never-there"))
	_, ok, err := sc.Get(s.ctx, "k")
	s.Require().NoError(err)
	s.False(ok)
}

func (s *conformance) TestAllIsSortedByKey() {
	sc := s.db.Scope(database.PendingIdentities)
	for _, k := range []string{"c", "a/b", "b"} {
		require.NoError(s.T(), sc.Put(s.ctx, k, []byte(k)))
	}
	all, err := sc.All(s.ctx)
	s.Require().NoError(err)
	var keys []string
	for _, e := range all {
		keys = append(keys, e.Key)
	}
	s.Equal([]string{"a/b", "b", "c"}, keys)
}
