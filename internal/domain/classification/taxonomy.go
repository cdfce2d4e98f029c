// Package classification assigns category suggestions to imported
// expenses. An LLM does the heavy lifting; a keyword engine answers when
// the LLM is unavailable or returns something outside the taxonomy.
package classification

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Category is one top-level spending category with its allowed
// subcategories and the keywords the fallback engine matches on.
type Category struct {
	Name          string   `yaml:"name"`
	Subcategories []string `yaml:"subcategories"`
	Keywords      []string `yaml:"keywords"`
}

// Taxonomy is the closed category set suggestions must come from.
type Taxonomy struct {
	Categories []Category `yaml:"categories"`
	Fallback   string     `yaml:"fallback"`
}

// LoadTaxonomy reads a taxonomy from a YAML file.
func LoadTaxonomy(path string) (*Taxonomy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read taxonomy %s: %w", path, err)
	}
	var tax Taxonomy
	if err := yaml.Unmarshal(raw, &tax); err != nil {
		return nil, fmt.Errorf("failed to parse taxonomy %s: %w", path, err)
	}
	if len(tax.Categories) == 0 {
		return nil, fmt.Errorf("taxonomy %s has no categories", path)
	}
	if tax.Fallback == "" {
		tax.Fallback = "其他"
	}
	return &tax, nil
}

// DefaultTaxonomy returns the built-in category set used when no taxonomy
// file is configured.
func DefaultTaxonomy() *Taxonomy {
	return &Taxonomy{
		Fallback: "其他",
		Categories: []Category{
			{
				Name:          "餐饮",
				Subcategories: []string{"正餐", "外卖", "咖啡饮品", "零食"},
				Keywords:      []string{"美团", "饿了么", "肯德基", "麦当劳", "瑞幸", "星巴克", "餐厅", "外卖", "咖啡", "奶茶"},
			},
			{
				Name:          "交通",
				Subcategories: []string{"打车", "公共交通", "加油", "停车"},
				Keywords:      []string{"滴滴", "高德打车", "地铁", "公交", "加油", "停车", "铁路", "12306"},
			},
			{
				Name:          "购物",
				Subcategories: []string{"日用百货", "服饰", "数码", "生鲜"},
				Keywords:      []string{"淘宝", "京东", "拼多多", "天猫", "便利店", "超市", "盒马", "优衣库"},
			},
			{
				Name:          "居住",
				Subcategories: []string{"房租", "水电燃气", "物业"},
				Keywords:      []string{"房租", "电费", "水费", "燃气", "物业"},
			},
			{
				Name:          "娱乐",
				Subcategories: []string{"影音会员", "游戏", "演出"},
				Keywords:      []string{"电影", "腾讯视频", "爱奇艺", "网易云", "Steam", "演唱会"},
			},
			{
				Name:          "医疗健康",
				Subcategories: []string{"门诊", "药品", "体检"},
				Keywords:      []string{"医院", "药房", "药店", "体检", "挂号"},
			},
			{
				Name:          "其他",
				Subcategories: nil,
				Keywords:      nil,
			},
		},
	}
}

// Valid reports whether the pair l1/l2 is inside the taxonomy. An empty l2
// is always acceptable.
func (t *Taxonomy) Valid(l1, l2 string) bool {
	for _, c := range t.Categories {
		if c.Name != l1 {
			continue
		}
		if l2 == "" {
			return true
		}
		for _, sub := range c.Subcategories {
			if sub == l2 {
				return true
			}
		}
		return false
	}
	return false
}
