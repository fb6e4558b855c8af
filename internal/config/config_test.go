package config_test

import (
	"context"
	"errors"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/tally/internal/config"
	"github.com/okian/tally/internal/domain/model"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.Store, convey.ShouldEqual, "memory")
			convey.So(cfg.DedupeSize, convey.ShouldEqual, 50_000)
			convey.So(cfg.MaxPageLimit, convey.ShouldEqual, 100)
			convey.So(cfg.RecentActivityLimit, convey.ShouldEqual, 50)
			convey.So(cfg.CenturyThreshold, convey.ShouldEqual, 100)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Policies(t *testing.T) {
	convey.Convey("Given a config with table overrides", t, func() {
		cfg := config.New(context.Background())
		cfg.TaskPoints = map[string]config.TaskPoints{
			"task": {Base: 12, Interval: 4, Bonus: 40},
		}
		cfg.ActivityPoints = map[string]map[string]int64{
			"learning": {"easy": 11},
		}
		cfg.CenturyThreshold = 500

		convey.Convey("When the policies are built", func() {
			tasks, err := cfg.TaskPolicy()
			convey.So(err, convey.ShouldBeNil)
			acts, err := cfg.ActivityPolicy()
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then overridden cells change and the rest keep their defaults", func() {
				rule, ok := tasks.Rule(model.TaskRegular)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(rule.BasePoints, convey.ShouldEqual, 12)
				hp, _ := tasks.Rule(model.TaskHighPriority)
				convey.So(hp.BasePoints, convey.ShouldEqual, 20)
				convey.So(tasks.CenturyThreshold(), convey.ShouldEqual, 500)
				convey.So(acts.BasePoints(model.ActivityLearning, model.DifficultyEasy), convey.ShouldEqual, 11)
				convey.So(acts.BasePoints(model.ActivityLearning, model.DifficultyExpert), convey.ShouldEqual, 100)
			})
		})

		convey.Convey("When a table names an unknown type", func() {
			cfg.TaskPoints["epicTask"] = config.TaskPoints{Base: 1}

			convey.Convey("Then validation rejects it", func() {
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a trusted proxy is not an address", func() {
			cfg.TrustedProxies = []string{"10.0.0.0/8", "proxy.local"}

			convey.Convey("Then validation rejects it", func() {
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a table names an unknown difficulty", func() {
			cfg.ActivityPoints["project"] = map[string]int64{"legendary": 1}

			convey.Convey("Then validation rejects it", func() {
				_, err := cfg.ActivityPolicy()
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}
