package services

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campaign-sheet-service/internal/clients"
	"campaign-sheet-service/internal/clients/freeway"
	"campaign-sheet-service/internal/flow"
	"campaign-sheet-service/internal/models"
)

func TestFieldKey(t *testing.T) {
	assert.Equal(t, "juId", FieldKey("juId"))
	assert.Equal(t, "itemId", FieldKey("商品ID/itemId"))
	assert.Equal(t, "featureDesc3", FieldKey("描述4/featureDesc3"))
	assert.Equal(t, "TOP_SELL_POINTS", FieldKey("尖货卖点/TOP_SELL_POINTS"))
}

func assertColumnsRoundTrip[T models.ApplyForm](t *testing.T, mappings []flow.FieldMapping[T], want int) {
	t.Helper()
	require.Len(t, mappings, want)
	require.NoError(t, flow.ValidateMappings(mappings))

	var record T
	for i, m := range mappings {
		record = m.Set(record, fmt.Sprintf("v%d", i))
	}
	fields, err := models.FormFields(record)
	require.NoError(t, err)
	for i, m := range mappings {
		assert.Equal(t, fmt.Sprintf("v%d", i), m.Get(record), m.Name)
		assert.Equal(t, fmt.Sprintf("v%d", i), fields[FieldKey(m.Name)], m.Name)
	}
}

func TestPlatformTablesBindEveryColumn(t *testing.T) {
	assertColumnsRoundTrip(t, juSpec().mappings, 36)
	assertColumnsRoundTrip(t, taoQiangGouSpec().mappings, 17)
	assertColumnsRoundTrip(t, taoQingCangSpec().mappings, 18)
}

type builtSpec struct {
	platform models.Platform
	titles   []string
	unbound  []string // upload fields with no column
}

func describeSpec[T models.ApplyForm](spec *platformSpec[T]) builtSpec {
	b := builtSpec{platform: spec.platform, titles: flow.Titles(spec.mappings)}
	for key := range spec.uploads {
		if _, ok := spec.byKey[key]; !ok {
			b.unbound = append(b.unbound, key)
		}
	}
	return b
}

func TestPlatformSpecsBuild(t *testing.T) {
	tests := []struct {
		platform models.Platform
		titles   []string
		build    func() builtSpec
	}{
		{models.PlatformJu, juTitles, func() builtSpec { return describeSpec(juSpec()) }},
		{models.PlatformTaoQiangGou, taoQiangGouTitles, func() builtSpec { return describeSpec(taoQiangGouSpec()) }},
		{models.PlatformTaoQingCang, taoQingCangTitles, func() builtSpec { return describeSpec(taoQingCangSpec()) }},
	}
	for _, tc := range tests {
		t.Run(string(tc.platform), func(t *testing.T) {
			var built builtSpec
			require.NotPanics(t, func() { built = tc.build() })
			assert.Equal(t, tc.platform, built.platform)
			assert.Equal(t, tc.titles, built.titles)
			assert.Empty(t, built.unbound)
		})
	}
}

func TestTaoQiangGouImportColumnTitle(t *testing.T) {
	titles := flow.Titles(taoQiangGouSpec().mappings)
	assert.Contains(t, titles, "是否进口商品/isImport")
	assert.Contains(t, titles, "商品利益点/itemBenefitPoints")
}

func TestColumnPanicsOnUnknownField(t *testing.T) {
	assert.Panics(t, func() { column[models.JuApplyForm]("不存在/nope") })
}

func scrapeField(fields []clients.FormField, name string) clients.FormField {
	for _, f := range fields {
		if f.Name == name {
			return f
		}
	}
	return clients.FormField{}
}

func TestJuScrapePlan(t *testing.T) {
	scrape := juSpec().scrape
	require.Len(t, scrape, 36)

	assert.Equal(t, clients.FormField{Name: "skuType", Kind: clients.FieldCheckedOrValue}, scrapeField(scrape, "skuType"))
	assert.Equal(t, clients.FormField{Name: "currentCount", Selector: `input[name="itemCount"]`, Kind: clients.FieldNextPrimary}, scrapeField(scrape, "currentCount"))
	assert.Equal(t, clients.FormField{Name: "itemDesc", Selector: `textarea[name="itemDesc"]`, Kind: clients.FieldText}, scrapeField(scrape, "itemDesc"))
}

func TestIDScrapePlan(t *testing.T) {
	tqg := taoQiangGouSpec().scrape
	assert.Equal(t, clients.FormField{Name: "juId", Selector: "#juId"}, scrapeField(tqg, "juId"))
	assert.Equal(t, clients.FormField{Name: "itemMainPic", Selector: "#itemMainPicval"}, scrapeField(tqg, "itemMainPic"))
	assert.Equal(t, clients.FormField{Name: "itemTaobaoAppMaterial", Selector: "#itemTaobaoAppMaterialval"}, scrapeField(tqg, "itemTaobaoAppMaterial"))
	assert.Equal(t, clients.FieldChecked, scrapeField(tqg, "isImport").Kind)

	tqc := taoQingCangSpec().scrape
	assert.Equal(t, clients.FieldChecked, scrapeField(tqc, "itemTqcNewTag").Kind)
	assert.Equal(t, "#itemHiddenSearchTag", scrapeField(tqc, "itemHiddenSearchTag").Selector)
}

func TestWiseFormats(t *testing.T) {
	spec := taoQiangGouSpec()
	record := models.TaoQiangGouApplyForm{PlatformID: "p1", ItemID: "i1", ActivityEnterID: "a1"}

	main, ok := spec.wise(record, spec.byKey["itemMainPic"])
	require.True(t, ok)
	assert.Equal(t, "mainPic_p1_i1", main)

	material, ok := spec.wise(record, spec.byKey["itemTaobaoAppMaterial"])
	require.True(t, ok)
	assert.Equal(t, "hyalineImgPic_p1_i1_a1_0_0_0", material)

	_, ok = spec.wise(record, spec.byKey["shortTitle"])
	assert.False(t, ok)

	ju := juSpec()
	_, ok = ju.wise(models.JuApplyForm{}, ju.byKey["itemMainPic"])
	assert.False(t, ok)
}

func TestPlaceholder(t *testing.T) {
	p := taoQingCangSpec().placeholder(clients.ListedItem{JuID: "9", ItemID: "8", ItemName: "shoe"})
	assert.Equal(t, models.TaoQingCangApplyForm{JuID: "9", ItemID: "8", ShortTitle: "shoe"}, p)
}

func TestFreewayConfig(t *testing.T) {
	base := freeway.Config{BaseURL: "https://example.com"}

	ju := FreewayConfig(models.PlatformJu, base)
	assert.True(t, ju.SubmitBlank)
	assert.Empty(t, ju.SubmitExtras)

	tqc := FreewayConfig(models.PlatformTaoQingCang, base)
	assert.False(t, tqc.SubmitBlank)
	assert.Equal(t, "//tqcfreeway.ju.taobao.com/tg/itemApplyResult.htm", tqc.SubmitExtras["itemApplyResult"])

	tqg := FreewayConfig(models.PlatformTaoQiangGou, base)
	assert.Equal(t, base, tqg)
}
