package core

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"registry-core/internal/entities"
	"registry-core/internal/types"
)

const bugVersionsConfig = `{
	"bug-versions": {
		"a": {"1.2.0": {"version": "1.1.5", "reason": "broken build"}},
		"@scope/b": {"2.0.0": {"version": "1.9.0", "reason": "regression"}}
	}
}`

func newBugVersionRegistry() *stubRegistry {
	registry := newVersionFixture()
	registry.addVersion(types.BugVersionsPackage, "1.0.0", map[string]string{"config": bugVersionsConfig})
	registry.addTag(types.BugVersionsPackage, types.LatestTag, "1.0.0")
	return registry
}

func TestGetBugVersionLoadsOncePerVersion(t *testing.T) {
	registry := newBugVersionRegistry()
	store := newStubBugVersionStore()
	service := NewBugVersionService(registry, registry, newStubCache(), store)

	bugVersion, err := service.GetBugVersion(t.Context())
	require.NoError(t, err)
	require.NotNil(t, bugVersion)
	assert.Equal(t, []string{"@scope/b", "a"}, bugVersion.ListAllPackagesHasBugs())
	advice, ok := bugVersion.FixVersion("a", "1.2.0")
	require.True(t, ok)
	assert.Equal(t, types.BugVersionAdvice{FixedVersion: "1.1.5", Reason: "broken build"}, advice)

	again, err := service.GetBugVersion(t.Context())
	require.NoError(t, err)
	assert.Same(t, bugVersion, again)
	assert.Equal(t, 1, registry.manifestCalls)
	assert.Equal(t, 1, store.sets)
}

func TestGetBugVersionReloadsOnNewLatest(t *testing.T) {
	registry := newBugVersionRegistry()
	store := newStubBugVersionStore()
	service := NewBugVersionService(registry, registry, newStubCache(), store)

	first, err := service.GetBugVersion(t.Context())
	require.NoError(t, err)

	registry.addVersion(types.BugVersionsPackage, "1.1.0", map[string]string{"config": `{"bug-versions": {"c": {"1.0.0": {"version": "0.9.0", "reason": "leak"}}}}`})
	registry.addTag(types.BugVersionsPackage, types.LatestTag, "1.1.0")

	second, err := service.GetBugVersion(t.Context())
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, []string{"c"}, second.ListAllPackagesHasBugs())
	assert.Equal(t, 2, store.sets)
}

func TestGetBugVersionAbsent(t *testing.T) {
	t.Run("no package", func(t *testing.T) {
		registry := newVersionFixture()
		service := NewBugVersionService(registry, registry, newStubCache(), newStubBugVersionStore())
		bugVersion, err := service.GetBugVersion(t.Context())
		require.NoError(t, err)
		assert.Nil(t, bugVersion)
	})
	t.Run("no latest tag", func(t *testing.T) {
		registry := newVersionFixture()
		registry.addVersion(types.BugVersionsPackage, "1.0.0", map[string]string{"config": bugVersionsConfig})
		service := NewBugVersionService(registry, registry, newStubCache(), newStubBugVersionStore())
		bugVersion, err := service.GetBugVersion(t.Context())
		require.NoError(t, err)
		assert.Nil(t, bugVersion)
	})
}

func TestGetBugVersionWithoutConfig(t *testing.T) {
	for name, fields := range map[string]map[string]string{
		"missing config":    nil,
		"config not object": {"config": `"nope"`},
		"missing table key": {"config": `{"other": true}`},
		"null bug-versions": {"config": `{"bug-versions": null}`},
	} {
		t.Run(name, func(t *testing.T) {
			registry := newVersionFixture()
			registry.addVersion(types.BugVersionsPackage, "1.0.0", fields)
			registry.addTag(types.BugVersionsPackage, types.LatestTag, "1.0.0")
			service := NewBugVersionService(registry, registry, newStubCache(), newStubBugVersionStore())

			bugVersion, err := service.GetBugVersion(t.Context())
			require.NoError(t, err)
			require.NotNil(t, bugVersion)
			assert.Empty(t, bugVersion.ListAllPackagesHasBugs())
		})
	}
}

func TestGetBugVersionInvalidTable(t *testing.T) {
	registry := newVersionFixture()
	registry.addVersion(types.BugVersionsPackage, "1.0.0", map[string]string{"config": `{"bug-versions": ["a"]}`})
	registry.addTag(types.BugVersionsPackage, types.LatestTag, "1.0.0")
	store := newStubBugVersionStore()
	service := NewBugVersionService(registry, registry, newStubCache(), store)

	bugVersion, err := service.GetBugVersion(t.Context())
	require.NoError(t, err)
	require.NotNil(t, bugVersion)
	assert.Empty(t, bugVersion.ListAllPackagesHasBugs())
	assert.Equal(t, 1, store.sets)

	again, err := service.GetBugVersion(t.Context())
	require.NoError(t, err)
	assert.Same(t, bugVersion, again)
	assert.Equal(t, 1, store.sets)
}

func TestGetVersionSurvivesInvalidBugVersionTable(t *testing.T) {
	registry := newVersionFixture()
	registry.addVersion(types.BugVersionsPackage, "1.0.0", map[string]string{"config": `{"bug-versions": {"a": ["oops"]}}`})
	registry.addTag(types.BugVersionsPackage, types.LatestTag, "1.0.0")
	bugVersions := NewBugVersionService(registry, registry, newStubCache(), newStubBugVersionStore())
	service := newVersionService(registry, bugVersions)

	version, err := service.GetVersion(t.Context(), mustSpec(t, "a@^1.0.0"), true)
	require.NoError(t, err)
	assert.Equal(t, "1.2.0", version)
}

// ---------- CleanBugVersionPackageCaches ----------

func TestCleanBugVersionPackageCaches(t *testing.T) {
	table := entities.BugVersionTable{}
	for i := range 120 {
		table[fmt.Sprintf("pkg-%03d", i)] = map[string]types.BugVersionAdvice{"1.0.0": {FixedVersion: "0.9.0"}}
	}
	cache := newStubCache("pkg-007", "pkg-042")
	service := NewBugVersionService(nil, nil, cache, newStubBugVersionStore())
	service.CleanWorkers = 8

	report := service.CleanBugVersionPackageCaches(t.Context(), entities.NewBugVersion(table))
	assert.Len(t, report.Packages, 120)
	assert.Equal(t, []string{"pkg-007", "pkg-042"}, report.Failed)
	assert.Len(t, cache.removed, 120)
	for fullname, count := range cache.removed {
		assert.Equal(t, 1, count, fullname)
	}
}

func TestCleanBugVersionPackageCachesEmptyTable(t *testing.T) {
	cache := newStubCache()
	service := NewBugVersionService(nil, nil, cache, newStubBugVersionStore())
	report := service.CleanBugVersionPackageCaches(t.Context(), entities.NewBugVersion(nil))
	assert.Empty(t, report.Packages)
	assert.Empty(t, report.Failed)
	assert.Empty(t, cache.removed)
}

// ---------- FixPackageBugVersions ----------

func TestFixPackageBugVersions(t *testing.T) {
	registry := newVersionFixture()
	service := NewBugVersionService(registry, registry, newStubCache(), newStubBugVersionStore())
	bugVersion := adviceTable("a", "1.2.0", "1.1.5", "broken build")

	manifests := map[string]types.Manifest{}
	for _, version := range []string{"1.1.5", "1.2.0", "2.0.0"} {
		manifest, err := registry.FindPackageVersionManifest(t.Context(), "id-a", version)
		require.NoError(t, err)
		manifest.Name = ""
		manifests[version] = *manifest
	}

	gaps := service.FixPackageBugVersions(t.Context(), bugVersion, "a", manifests)
	assert.Empty(t, gaps)
	require.Len(t, manifests, 3)

	fixed := manifests["1.2.0"]
	assert.Equal(t, "a", fixed.Name)
	assert.Equal(t, "1.1.5", fixed.Version)
	assert.Equal(t, "[WARNING] Use 1.1.5 instead of 1.2.0, reason: broken build", fixed.Deprecated)
	assert.JSONEq(t, `{"tarball":"a-1.1.5.tgz"}`, string(fixed.Fields["dist"]))

	assert.Equal(t, "1.1.5", manifests["1.1.5"].Version)
	assert.Empty(t, manifests["1.1.5"].Deprecated)
	assert.Equal(t, "2.0.0", manifests["2.0.0"].Version)
}

func TestFixPackageBugVersionsMissingFixedVersion(t *testing.T) {
	service := NewBugVersionService(nil, nil, newStubCache(), newStubBugVersionStore())
	bugVersion := adviceTable("a", "1.2.0", "1.1.5", "broken build")
	manifests := map[string]types.Manifest{
		"1.2.0": {Name: "a", Version: "1.2.0"},
		"2.0.0": {Name: "a", Version: "2.0.0"},
	}

	gaps := service.FixPackageBugVersions(t.Context(), bugVersion, "a", manifests)
	assert.Equal(t, []BugVersionGap{{FullName: "a", Version: "1.2.0", FixedVersion: "1.1.5"}}, gaps)
	assert.Equal(t, types.Manifest{Name: "a", Version: "1.2.0"}, manifests["1.2.0"])
}

func TestFixPackageBugVersionsChainedAdviceUsesOriginals(t *testing.T) {
	service := NewBugVersionService(nil, nil, newStubCache(), newStubBugVersionStore())
	bugVersion := entities.NewBugVersion(entities.BugVersionTable{
		"a": {
			"3.0.0": {FixedVersion: "2.0.0", Reason: "r3"},
			"2.0.0": {FixedVersion: "1.0.0", Reason: "r2"},
		},
	})
	manifests := map[string]types.Manifest{
		"1.0.0": {Name: "a", Version: "1.0.0"},
		"2.0.0": {Name: "a", Version: "2.0.0"},
		"3.0.0": {Name: "a", Version: "3.0.0"},
	}

	gaps := service.FixPackageBugVersions(t.Context(), bugVersion, "a", manifests)
	assert.Empty(t, gaps)
	assert.Equal(t, "1.0.0", manifests["2.0.0"].Version)
	assert.Equal(t, "2.0.0", manifests["3.0.0"].Version)
	assert.Equal(t, "[WARNING] Use 2.0.0 instead of 3.0.0, reason: r3", manifests["3.0.0"].Deprecated)
}

func TestFixPackageBugVersionsNilBatch(t *testing.T) {
	service := NewBugVersionService(nil, nil, newStubCache(), newStubBugVersionStore())
	bugVersion := adviceTable("a", "1.2.0", "1.1.5", "broken build")
	assert.Nil(t, service.FixPackageBugVersions(t.Context(), bugVersion, "a", nil))
}

// ---------- FixPackageBugVersion ----------

func TestFixPackageBugVersion(t *testing.T) {
	registry := newVersionFixture()
	service := NewBugVersionService(registry, registry, newStubCache(), newStubBugVersionStore())
	bugVersion := adviceTable("a", "1.2.0", "1.1.5", "broken build")

	fixed, err := service.FixPackageBugVersion(t.Context(), bugVersion, "a", types.Manifest{Version: "1.2.0"})
	require.NoError(t, err)
	assert.Equal(t, "a", fixed.Name)
	assert.Equal(t, "1.1.5", fixed.Version)
	assert.Equal(t, "[WARNING] Use 1.1.5 instead of 1.2.0, reason: broken build", fixed.Deprecated)
	assert.JSONEq(t, `{"tarball":"a-1.1.5.tgz"}`, string(fixed.Fields["dist"]))

	untouched := types.Manifest{Name: "a", Version: "2.0.0"}
	got, err := service.FixPackageBugVersion(t.Context(), bugVersion, "a", untouched)
	require.NoError(t, err)
	assert.Equal(t, untouched, got)
}

func TestFixPackageBugVersionFixedVersionMissing(t *testing.T) {
	registry := newVersionFixture()
	service := NewBugVersionService(registry, registry, newStubCache(), newStubBugVersionStore())
	bugVersion := adviceTable("a", "1.2.0", "0.0.1", "broken build")

	input := types.Manifest{Name: "a", Version: "1.2.0"}
	got, err := service.FixPackageBugVersion(t.Context(), bugVersion, "a", input)
	require.NoError(t, err)
	assert.Equal(t, input, got)
}

// ---------- BugVersionFixHandler ----------

func TestBugVersionFixHandler(t *testing.T) {
	registry := newBugVersionRegistry()
	cache := newStubCache("@scope/b")
	handler := NewBugVersionFixHandler(NewBugVersionService(registry, registry, cache, newStubBugVersionStore()))

	report, err := handler.Handle(t.Context(), "a")
	require.NoError(t, err)
	assert.Nil(t, report)
	assert.Empty(t, cache.removed)

	report, err = handler.Handle(t.Context(), types.BugVersionsPackage)
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, []string{"@scope/b", "a"}, report.Packages)
	assert.Equal(t, []string{"@scope/b"}, report.Failed)
	assert.Equal(t, map[string]int{"@scope/b": 1, "a": 1}, cache.removed)
}

func TestBugVersionFixHandlerWithoutTable(t *testing.T) {
	registry := newVersionFixture()
	cache := newStubCache()
	handler := NewBugVersionFixHandler(NewBugVersionService(registry, registry, cache, newStubBugVersionStore()))

	report, err := handler.Handle(t.Context(), types.BugVersionsPackage)
	require.NoError(t, err)
	assert.Nil(t, report)
	assert.Empty(t, cache.removed)
}

func TestBugVersionFixHandlerLoadError(t *testing.T) {
	registry := newBugVersionRegistry()
	registry.err = errStubCache
	handler := NewBugVersionFixHandler(NewBugVersionService(registry, registry, newStubCache(), newStubBugVersionStore()))

	_, err := handler.Handle(t.Context(), types.BugVersionsPackage)
	require.ErrorIs(t, err, errStubCache)
}
