// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

//go:build integration

package mongodb_test

import (
	"context"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	tcmongodb "github.com/testcontainers/testcontainers-go/modules/mongodb"

	"github.com/authgate/authgate/internal/store"
	"github.com/authgate/authgate/internal/store/mongodb"
)

// setupMongoContainer starts a MongoDB container and returns a matching config.
func setupMongoContainer() (mongodb.Config, func(), error) {
	ctx := context.Background()

	container, err := tcmongodb.Run(ctx, "mongo:7")
	if err != nil {
		return mongodb.Config{}, nil, err
	}
	cleanup := func() { _ = container.Terminate(ctx) }

	host, err := container.Host(ctx)
	if err != nil {
		cleanup()
		return mongodb.Config{}, nil, err
	}
	port, err := container.MappedPort(ctx, "27017/tcp")
	if err != nil {
		cleanup()
		return mongodb.Config{}, nil, err
	}

	return mongodb.Config{
		Host:     host,
		Port:     port.Int(),
		Database: "authgate_test",
	}, cleanup, nil
}

var _ = Describe("MongoDB credential store", func() {
	var (
		s       *mongodb.Store
		cleanup func()
		ctx     context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		cfg, c, err := setupMongoContainer()
		Expect(err).NotTo(HaveOccurred())
		cleanup = c

		s = mongodb.New(cfg)
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

	It("registers once and keeps the first data", func() {
		id := uuid.New()
		Expect(s.RegisterUser(ctx, id, `{"v":1}`)).To(BeTrue())
		Expect(s.RegisterUser(ctx, id, `{"v":2}`)).To(BeFalse())
		Expect(s.GetUserData(ctx, id)).To(Equal(`{"v":1}`))
	})

	It("updates without inserting and deletes idempotently", func() {
		id, missing := uuid.New(), uuid.New()
		Expect(s.RegisterUser(ctx, id, `{}`)).To(BeTrue())

		s.UpdateUserData(ctx, id, `{"v":2}`)
		s.UpdateUserData(ctx, missing, `{"v":3}`)
		Expect(s.GetUserData(ctx, id)).To(Equal(`{"v":2}`))
		Expect(s.IsUserRegistered(ctx, missing)).To(BeFalse())

		s.DeleteUserData(ctx, id)
		s.DeleteUserData(ctx, id)
		Expect(s.IsUserRegistered(ctx, id)).To(BeFalse())
	})

	It("upserts a batch", func() {
		existing, fresh := uuid.New(), uuid.New()
		Expect(s.RegisterUser(ctx, existing, `{"old":true}`)).To(BeTrue())

		Expect(s.SaveBatch(ctx, map[uuid.UUID]store.Record{
			existing: {ID: existing, Data: `{"old":false}`},
			fresh:    {ID: fresh, Data: `{"fresh":true}`},
		})).To(Succeed())

		Expect(s.GetUserData(ctx, existing)).To(Equal(`{"old":false}`))
		Expect(s.GetUserData(ctx, fresh)).To(Equal(`{"fresh":true}`))
	})
})
