package classification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeywordEngineClassify(t *testing.T) {
	engine := NewKeywordEngine(DefaultTaxonomy())

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"exact keyword", "瑞幸咖啡 - 拿铁", "餐饮"},
		{"keyword inside description", "美团平台商户 - 外卖订单", "餐饮"},
		{"transport", "滴滴出行 - 快车", "交通"},
		{"shopping", "京东 - 自营旗舰店", "购物"},
		{"no match falls back", "张三", "其他"},
		{"empty falls back", "", "其他"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sug := engine.Classify(tt.in)
			require.NotNil(t, sug)
			assert.Equal(t, tt.want, sug.L1)
		})
	}
}

func TestKeywordEnginePrefersLongestMatch(t *testing.T) {
	tax := &Taxonomy{
		Fallback: "其他",
		Categories: []Category{
			{Name: "居住", Keywords: []string{"电费"}},
			{Name: "购物", Keywords: []string{"充电费宝"}},
		},
	}
	engine := NewKeywordEngine(tax)

	sug := engine.Classify("充电费宝 - 门店")
	assert.Equal(t, "购物", sug.L1)
}

func TestKeywordEngineEmptyTaxonomy(t *testing.T) {
	engine := NewKeywordEngine(&Taxonomy{Fallback: "其他", Categories: []Category{{Name: "其他"}}})
	sug := engine.Classify("随便什么")
	assert.Equal(t, "其他", sug.L1)
}

func TestTaxonomyValid(t *testing.T) {
	tax := DefaultTaxonomy()

	assert.True(t, tax.Valid("餐饮", "外卖"))
	assert.True(t, tax.Valid("餐饮", ""))
	assert.True(t, tax.Valid("其他", ""))
	assert.False(t, tax.Valid("餐饮", "打车"))
	assert.False(t, tax.Valid("不存在", ""))
}

func TestBuildSystemPrompt(t *testing.T) {
	prompt := BuildSystemPrompt(DefaultTaxonomy())

	assert.Contains(t, prompt, "餐饮")
	assert.Contains(t, prompt, "咖啡饮品")
	assert.Contains(t, prompt, "category_l1")
	assert.Contains(t, prompt, "JSON")
}
