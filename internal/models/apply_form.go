package models

import (
	"encoding/json"
	"fmt"
)

// JuApplyForm is the editable part of a 聚划算 item apply form. JSON names
// are the form field names.
type JuApplyForm struct {
	JuID                  string `json:"juId"`
	ItemID                string `json:"itemId"`
	PlatformID            string `json:"platformId"`
	ActivityEnterID       string `json:"activityEnterId"`
	SkuType               string `json:"skuType"`
	ActivityPrice         string `json:"activityPrice"`
	PriceType             string `json:"priceType"`
	InventoryType         string `json:"inventoryType"`
	ItemCount             string `json:"itemCount"`
	CurrentCount          string `json:"currentCount"`
	ShortTitle            string `json:"shortTitle"`
	SmallTitle            string `json:"smallTitle"`
	ItemMainPic           string `json:"itemMainPic"`
	ItemExtraPic1         string `json:"itemExtraPic1"`
	ItemExtraPic2         string `json:"itemExtraPic2"`
	ItemExtraPic3         string `json:"itemExtraPic3"`
	ItemExtraPic4         string `json:"itemExtraPic4"`
	ItemWireMainPic       string `json:"itemWireMainPic"`
	ItemTaobaoAppMaterial string `json:"itemTaobaoAppMaterial"`
	Feature1              string `json:"feature1"`
	FeatureDesc1          string `json:"featureDesc1"`
	Feature2              string `json:"feature2"`
	FeatureDesc2          string `json:"featureDesc2"`
	Feature3              string `json:"feature3"`
	FeatureDesc3          string `json:"featureDesc3"`
	SellPoint             string `json:"sellPoint"`
	IsImport              string `json:"isImport"`
	PayPostage            string `json:"payPostage"`
	LimitNum              string `json:"limitNum"`
	ItemDesc              string `json:"itemDesc"`
	ItemBrandName         string `json:"itemBrandName"`
	ItemBrandLogo         string `json:"itemBrandLogo"`
	DcSpmd                string `json:"DC_SPMD"`
	DcTjly                string `json:"DC_TJLY"`
	BimaiReason           string `json:"bimaiReason"`
	TopSellPoints         string `json:"TOP_SELL_POINTS"`
}

// TaoQiangGouApplyForm is the editable part of a 淘抢购 apply form
type TaoQiangGouApplyForm struct {
	JuID                  string `json:"juId"`
	ItemID                string `json:"itemId"`
	PlatformID            string `json:"platformId"`
	ActivityEnterID       string `json:"activityEnterId"`
	ActivityID            string `json:"activityId"`
	SkuType               string `json:"skuType"`
	ActivityPrice         string `json:"activityPrice"`
	PriceType             string `json:"priceType"`
	InventoryType         string `json:"inventoryType"`
	ItemCount             string `json:"itemCount"`
	ShortTitle            string `json:"shortTitle"`
	ItemMainPic           string `json:"itemMainPic"`
	ItemTaobaoAppMaterial string `json:"itemTaobaoAppMaterial"`
	ItemBenefitPoints     string `json:"itemBenefitPoints"`
	IsImport              string `json:"isImport"`
	PayPostage            string `json:"payPostage"`
	LimitNum              string `json:"limitNum"`
}

// TaoQingCangApplyForm is the editable part of a 淘清仓 apply form. The ids
// are numeric on the back-office and kept as decimal strings here.
type TaoQingCangApplyForm struct {
	JuID                  string `json:"juId"`
	ItemID                string `json:"itemId"`
	PlatformID            string `json:"platformId"`
	ActivityEnterID       string `json:"activityEnterId"`
	ActivityID            string `json:"activityId"`
	SkuType               string `json:"skuType"`
	ActivityPrice         string `json:"activityPrice"`
	PriceType             string `json:"priceType"`
	InventoryType         string `json:"inventoryType"`
	ItemCount             string `json:"itemCount"`
	ShortTitle            string `json:"shortTitle"`
	ItemMainPic           string `json:"itemMainPic"`
	ItemTaobaoAppMaterial string `json:"itemTaobaoAppMaterial"`
	ItemTqcNewTag         string `json:"itemTqcNewTag"`
	ItemHiddenSearchTag   string `json:"itemHiddenSearchTag"`
	PayPostage            string `json:"payPostage"`
	LimitNum              string `json:"limitNum"`
	ItemBrandName         string `json:"itemBrandName"`
}

// ApplyForm is implemented by the per-platform form records
type ApplyForm interface {
	JuApplyForm | TaoQiangGouApplyForm | TaoQingCangApplyForm
}

// FormFields flattens a form record into form field name/value pairs
func FormFields[T ApplyForm](form T) (map[string]string, error) {
	data, err := json.Marshal(form)
	if err != nil {
		return nil, fmt.Errorf("failed to encode apply form: %w", err)
	}
	fields := make(map[string]string)
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("failed to encode apply form: %w", err)
	}
	return fields, nil
}

// FormFromFields builds a form record from scraped field values. Unknown
// fields are ignored.
func FormFromFields[T ApplyForm](fields map[string]string) (T, error) {
	var form T
	data, err := json.Marshal(fields)
	if err != nil {
		return form, fmt.Errorf("failed to decode apply form: %w", err)
	}
	if err := json.Unmarshal(data, &form); err != nil {
		return form, fmt.Errorf("failed to decode apply form: %w", err)
	}
	return form, nil
}
