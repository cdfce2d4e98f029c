package classification

import (
	"fmt"
	"strings"
)

// BuildSystemPrompt renders the classification instructions with the
// taxonomy inlined, so the model can only answer inside the closed set.
func BuildSystemPrompt(tax *Taxonomy) string {
	var b strings.Builder
	b.WriteString("你是一个个人记账助手，负责为支出记录选择分类。\n")
	b.WriteString("可选的分类如下（一级分类：二级分类列表）：\n")
	for _, c := range tax.Categories {
		if len(c.Subcategories) == 0 {
			fmt.Fprintf(&b, "- %s\n", c.Name)
			continue
		}
		fmt.Fprintf(&b, "- %s：%s\n", c.Name, strings.Join(c.Subcategories, "、"))
	}
	b.WriteString("请根据用户给出的交易描述，从上面的分类中选择最合适的一项。\n")
	b.WriteString("只输出 JSON 对象，格式为 {\"category_l1\": \"一级分类\", \"category_l2\": \"二级分类\"}。\n")
	b.WriteString("如果没有合适的二级分类，category_l2 置为空字符串。不要输出任何其他内容。")
	return b.String()
}
