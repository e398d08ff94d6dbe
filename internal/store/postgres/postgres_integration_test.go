// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

//go:build integration

package postgres_test

import (
	"context"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/authgate/authgate/internal/store"
	"github.com/authgate/authgate/internal/store/postgres"
)

// setupPostgresContainer starts a PostgreSQL container and returns a matching config.
func setupPostgresContainer() (postgres.Config, func(), error) {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("authgate_test"),
		tcpostgres.WithUsername("authgate"),
		tcpostgres.WithPassword("authgate"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return postgres.Config{}, nil, err
	}
	cleanup := func() { _ = container.Terminate(ctx) }

	host, err := container.Host(ctx)
	if err != nil {
		cleanup()
		return postgres.Config{}, nil, err
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		cleanup()
		return postgres.Config{}, nil, err
	}

	return postgres.Config{
		Host:     host,
		Port:     port.Int(),
		User:     "authgate",
		Password: "authgate",
		Database: "authgate_test",
		Table:    "players",
	}, cleanup, nil
}

var _ = Describe("Postgres credential store", func() {
	var (
		s       *postgres.Store
		cfg     postgres.Config
		cleanup func()
		ctx     context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		cfg, cleanup, err = setupPostgresContainer()
		Expect(err).NotTo(HaveOccurred())

		s = postgres.New(cfg)
		Expect(s.Connect(ctx)).To(Succeed())
	})

	AfterEach(func() {
		if s != nil {
			s.Close(ctx)
		}
		if cleanup != nil {
			cleanup()
		}
	})

	Describe("registration", func() {
		It("registers once and keeps the first data", func() {
			id := uuid.New()
			Expect(s.IsUserRegistered(ctx, id)).To(BeFalse())
			Expect(s.RegisterUser(ctx, id, `{"v":1}`)).To(BeTrue())
			Expect(s.RegisterUser(ctx, id, `{"v":2}`)).To(BeFalse())
			Expect(s.IsUserRegistered(ctx, id)).To(BeTrue())
			Expect(s.GetUserData(ctx, id)).To(Equal(`{"v":1}`))
		})
	})

	Describe("updates and deletes", func() {
		It("updates only the targeted row", func() {
			a, b := uuid.New(), uuid.New()
			Expect(s.RegisterUser(ctx, a, `{"n":"a"}`)).To(BeTrue())
			Expect(s.RegisterUser(ctx, b, `{"n":"b"}`)).To(BeTrue())

			s.UpdateUserData(ctx, a, `{"n":"a2"}`)

			Expect(s.GetUserData(ctx, a)).To(Equal(`{"n":"a2"}`))
			Expect(s.GetUserData(ctx, b)).To(Equal(`{"n":"b"}`))
		})

		It("does not insert when updating a missing row", func() {
			id := uuid.New()
			s.UpdateUserData(ctx, id, `{}`)
			Expect(s.IsUserRegistered(ctx, id)).To(BeFalse())
		})

		It("deletes and tolerates deleting twice", func() {
			id := uuid.New()
			Expect(s.RegisterUser(ctx, id, `{}`)).To(BeTrue())
			s.DeleteUserData(ctx, id)
			s.DeleteUserData(ctx, id)
			Expect(s.IsUserRegistered(ctx, id)).To(BeFalse())
			Expect(s.GetUserData(ctx, id)).To(BeEmpty())
		})
	})

	Describe("SaveBatch", func() {
		It("inserts new rows and overwrites existing ones", func() {
			existing, fresh := uuid.New(), uuid.New()
			Expect(s.RegisterUser(ctx, existing, `{"old":true}`)).To(BeTrue())

			err := s.SaveBatch(ctx, map[uuid.UUID]store.Record{
				existing: {ID: existing, Data: `{"old":false}`},
				fresh:    {ID: fresh, Data: `{"fresh":true}`},
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(s.GetUserData(ctx, existing)).To(Equal(`{"old":false}`))
			Expect(s.GetUserData(ctx, fresh)).To(Equal(`{"fresh":true}`))
		})

		It("writes nothing when one record is rejected", func() {
			good, bad := uuid.New(), uuid.New()
			err := s.SaveBatch(ctx, map[uuid.UUID]store.Record{
				good: {ID: good, Data: `{}`},
				bad:  {ID: bad, Data: `not json`},
			})
			Expect(err).To(HaveOccurred())
			Expect(s.IsUserRegistered(ctx, good)).To(BeFalse())
		})
	})

	Describe("reconnect on demand", func() {
		It("reconnects after the handle is closed", func() {
			id := uuid.New()
			Expect(s.RegisterUser(ctx, id, `{}`)).To(BeTrue())
			s.Close(ctx)
			Expect(s.IsClosed()).To(BeTrue())

			Expect(s.IsUserRegistered(ctx, id)).To(BeTrue())
			Expect(s.IsClosed()).To(BeFalse())
		})
	})
})
