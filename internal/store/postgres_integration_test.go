// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package store_test

import (
	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/holomush/plugbridge/internal/store"
	"github.com/holomush/plugbridge/pkg/errutil"
)

var _ = Describe("PostgresStore", Ordered, func() {
	var (
		pool     *pgxpool.Pool
		kv       *store.PostgresStore
		migrator *store.Migrator
	)

	BeforeAll(func(ctx SpecContext) {
		var err error
		migrator, err = store.NewMigrator(databaseURL)
		Expect(err).NotTo(HaveOccurred())

		pool, err = store.NewPool(ctx, databaseURL)
		Expect(err).NotTo(HaveOccurred())
		kv = store.NewPostgresStore(pool)
	})

	AfterAll(func() {
		pool.Close()
		Expect(migrator.Close()).To(Succeed())
	})

	It("reports an unmigrated schema", func(ctx SpecContext) {
		_, err := kv.Get(ctx, "bank", "steve")
		Expect(err).To(HaveOccurred())
		Expect(errutil.Code(err)).To(Equal(store.CodeNotMigrated))
	})

	It("migrates up", func() {
		pending, err := migrator.Pending()
		Expect(err).NotTo(HaveOccurred())
		Expect(pending).To(Equal([]uint{1, 2}))

		Expect(migrator.Up()).To(Succeed())
		Expect(migrator.Up()).To(Succeed(), "second up is a no-op")

		version, dirty, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(Equal(uint(2)))
		Expect(dirty).To(BeFalse())
	})

	It("stores namespaced values", func(ctx SpecContext) {
		Expect(kv.Set(ctx, "bank", "steve", []byte("42"))).To(Succeed())
		Expect(kv.Set(ctx, "bank", "steve", []byte("43"))).To(Succeed())
		Expect(kv.Set(ctx, "bank", "alex", nil)).To(Succeed())
		Expect(kv.Set(ctx, "shop", "steve", []byte("x"))).To(Succeed())

		Expect(kv.Get(ctx, "bank", "steve")).To(Equal([]byte("43")))
		Expect(kv.Get(ctx, "bank", "alex")).To(BeEmpty())
		Expect(kv.Get(ctx, "bank", "nobody")).To(BeNil())
		Expect(kv.Keys(ctx, "bank")).To(Equal([]string{"alex", "steve"}))

		Expect(kv.Delete(ctx, "bank", "steve")).To(Succeed())
		Expect(kv.Delete(ctx, "bank", "steve")).To(Succeed())
		Expect(kv.Keys(ctx, "bank")).To(Equal([]string{"alex"}))
	})

	It("steps down and back up", func() {
		Expect(migrator.Steps(-1)).To(Succeed())
		version, _, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(Equal(uint(1)))

		Expect(migrator.Steps(1)).To(Succeed())
	})

	It("migrates down", func(ctx SpecContext) {
		Expect(migrator.Down()).To(Succeed())
		version, _, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(BeZero())

		_, err = kv.Keys(ctx, "bank")
		Expect(errutil.Code(err)).To(Equal(store.CodeNotMigrated))
	})
})
