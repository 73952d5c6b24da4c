package services

import (
	"campaign-sheet-service/internal/clients"
	"campaign-sheet-service/internal/clients/freeway"
	"campaign-sheet-service/internal/flow"
	"campaign-sheet-service/internal/models"
)

var juTitles = []string{
	"juId",
	"商品ID/itemId",
	"platformId",
	"活动ID/activityEnterId",
	"报名方式/skuType",
	"活动价格/activityPrice",
	"价格方式/priceType",
	"库存类型/inventoryType",
	"报名数量/itemCount",
	"当前库存量/currentCount",
	"宝贝标题/shortTitle",
	"短标题/smallTitle",
	"主图/itemMainPic",
	"辅图1/itemExtraPic1",
	"辅图2/itemExtraPic2",
	"辅图3/itemExtraPic3",
	"辅图4/itemExtraPic4",
	"无线主图/itemWireMainPic",
	"商品素材图/itemTaobaoAppMaterial",
	"卖点1/feature1",
	"描述1/featureDesc1",
	"卖点2/feature2",
	"描述2/featureDesc2",
	"卖点3/feature3",
	"描述4/featureDesc3",
	"价格卖点/sellPoint",
	"是否进口商品/isImport",
	"运费/payPostage",
	"每个ID限购/limitNum",
	"宝贝描述/itemDesc",
	"品牌名称/itemBrandName",
	"品牌Logo/itemBrandLogo",
	"大促卖点/DC_SPMD",
	"大促推荐理由/DC_TJLY",
	"必买理由/bimaiReason",
	"尖货卖点/TOP_SELL_POINTS",
}

var taoQiangGouTitles = []string{
	"juId",
	"商品ID/itemId",
	"platformId",
	"活动ID/activityEnterId",
	"activityId",
	"报名方式/skuType",
	"活动价格/activityPrice",
	"priceType",
	"库存类型/inventoryType",
	"报名数量/itemCount",
	"宝贝标题/shortTitle",
	"图片/itemMainPic",
	"商品素材图/itemTaobaoAppMaterial",
	"商品利益点/itemBenefitPoints",
	"是否进口商品/isImport",
	"运费/payPostage",
	"每个ID限购/limitNum",
}

var taoQingCangTitles = []string{
	"juId",
	"商品ID/itemId",
	"platformId",
	"活动ID/activityEnterId",
	"activityId",
	"报名方式/skuType",
	"活动价格/activityPrice",
	"priceType",
	"库存类型/inventoryType",
	"报名数量/itemCount",
	"宝贝标题/shortTitle",
	"透明底模特图/itemMainPic",
	"透明底平铺图/itemTaobaoAppMaterial",
	"新版商品标签/itemTqcNewTag",
	"设置隐藏选项/itemHiddenSearchTag",
	"运费/payPostage",
	"每个ID限购/limitNum",
	"品牌名称/itemBrandName",
}

func juSpec() *platformSpec[models.JuApplyForm] {
	mappings := columns[models.JuApplyForm](juTitles...)

	// the 聚划算 form is addressed by input name
	scrape := make([]clients.FormField, 0, len(mappings))
	for _, m := range mappings {
		field := clients.FormField{Name: FieldKey(m.Name), Kind: clients.FieldCheckedOrValue}
		switch field.Name {
		case "currentCount":
			field = clients.FormField{Name: field.Name, Selector: `input[name="itemCount"]`, Kind: clients.FieldNextPrimary}
		case "itemDesc":
			field = clients.FormField{Name: field.Name, Selector: `textarea[name="itemDesc"]`, Kind: clients.FieldText}
		}
		scrape = append(scrape, field)
	}

	return newPlatformSpec(models.PlatformJu, mappings, scrape, map[string]wiseFunc{
		"itemTaobaoAppMaterial": materialWise,
	})
}

func taoQiangGouSpec() *platformSpec[models.TaoQiangGouApplyForm] {
	mappings := columns[models.TaoQiangGouApplyForm](taoQiangGouTitles...)
	return newPlatformSpec(models.PlatformTaoQiangGou, mappings,
		idScrape(mappings, "skuType", "priceType", "inventoryType", "isImport"),
		map[string]wiseFunc{
			"itemMainPic":           mainPicWise,
			"itemTaobaoAppMaterial": materialWise,
		})
}

func taoQingCangSpec() *platformSpec[models.TaoQingCangApplyForm] {
	mappings := columns[models.TaoQingCangApplyForm](taoQingCangTitles...)
	return newPlatformSpec(models.PlatformTaoQingCang, mappings,
		idScrape(mappings, "skuType", "priceType", "inventoryType", "itemTqcNewTag"),
		map[string]wiseFunc{
			"itemMainPic":           mainPicWise,
			"itemTaobaoAppMaterial": materialWise,
		})
}

// idScrape reads fields by element id. Radio groups are read from their
// checked input, and picture fields from the hidden "<key>val" input.
func idScrape[T any](mappings []flow.FieldMapping[T], radios ...string) []clients.FormField {
	isRadio := make(map[string]bool, len(radios))
	for _, r := range radios {
		isRadio[r] = true
	}

	scrape := make([]clients.FormField, 0, len(mappings))
	for _, m := range mappings {
		key := FieldKey(m.Name)
		switch {
		case isRadio[key]:
			scrape = append(scrape, clients.FormField{Name: key, Kind: clients.FieldChecked})
		case key == "itemMainPic" || key == "itemTaobaoAppMaterial":
			scrape = append(scrape, clients.FormField{Name: key, Selector: "#" + key + "val"})
		default:
			scrape = append(scrape, clients.FormField{Name: key, Selector: "#" + key})
		}
	}
	return scrape
}

// FreewayConfig applies a platform's form quirks to a client config
func FreewayConfig(p models.Platform, cfg freeway.Config) freeway.Config {
	switch p {
	case models.PlatformJu:
		cfg.SubmitBlank = true
	case models.PlatformTaoQingCang:
		cfg.SubmitExtras = map[string]string{
			"itemApplyResult": "//tqcfreeway.ju.taobao.com/tg/itemApplyResult.htm",
		}
	}
	return cfg
}
