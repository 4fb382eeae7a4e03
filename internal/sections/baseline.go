package sections

// baselineEntry 是手工维护的栏目种子：用于对账线上结构漂移。
// Expand 标记“统计发布 / 行业分析 / 价格指数”这类带子栏目的分组型栏目，
// 只有它们才会在发现时向下递归一层。
type baselineEntry struct {
	ID     string
	Name   string
	Expand bool
}

// 顶层栏目基线（来自门户 index.js，列表顺序即站点导航顺序）
var baselineColumns = []baselineEntry{
	{ID: "c42511ce3f868a515b49668dd250290c80d4dc8930c7e455d0e6e14b8033eae2", Name: "要闻"},
	{ID: "58af05dfb6b4300151760176d2aad0a04c275aaadbb1315039263f021f920dcd", Name: "钢协动态"},
	{ID: "268f86fdf61ac8614f09db38a2d0295253043b03e092c7ff48ab94290296125c", Name: "会员动态"},
	{ID: "a873c2e67b26b4a2d8313da769f6e106abc9a1ff04b7f1a50674dfa47cf91a7b", Name: "领导讲话"},
	{ID: "2e3c87064bdfc0e43d542d87fce8bcbc8fe0463d5a3da04d7e11b4c7d692194b", Name: "统计发布", Expand: true},
	{ID: "1b4316d9238e09c735365896c8e4f677a3234e8363e5622ae6e79a5900a76f56", Name: "行业分析", Expand: true},
	{ID: "17b6a9a214c94ccc28e56d4d1a2dbb5acef3e73da431ddc0a849a4dcfc487d04", Name: "价格指数", Expand: true},
	{ID: "5d77b433182404193834120ceed16fe0625860fafd5fd9e71d0800c4df227060", Name: "宏观经济信息"},
	{ID: "ae2a3c0fd4936acf75f4aab6fadd08bc6371aa65bdd50419e74b70d6f043c473", Name: "相关行业信息"},
	{ID: "1bad7c56af746a666e4a4e56e54a9508d344d7bc1498360580613590c16b6c41", Name: "国际动态"},
	{ID: "179cde9e2d8f7e84968dbfb9948056843a6f9e27f2aefd09bbb3ce67c501cccf", Name: "通知公告"},
}

// 三个分组型栏目的子栏目基线
var baselineSubtabs = map[string][]baselineEntry{
	// 统计发布
	"2e3c87064bdfc0e43d542d87fce8bcbc8fe0463d5a3da04d7e11b4c7d692194b": {
		{ID: "3238889ba0fa3aabcf28f40e537d440916a361c9170a4054f9fc43517cb58c1e", Name: "生产经营"},
		{ID: "95ef75c752af3b6c8be479479d8b931de7418c00150720280d78c8f0da0a438c", Name: "进出口"},
		{ID: "619ce7b53a4291d47c19d0ee0765098ca435e252576fbe921280a63fba4bc712", Name: "环保统计"},
	},
	// 行业分析
	"1b4316d9238e09c735365896c8e4f677a3234e8363e5622ae6e79a5900a76f56": {
		{ID: "a44207e193a5caa5e64102604b6933896a0025eb85c57c583b39626f33d4dafd", Name: "市场价格分析"},
		{ID: "05d0e136828584d2cd6e45bdc3270372764781b98546cce122d9974489b1e2f2", Name: "板带材"},
		{ID: "197422a82d9a09b9cc86188444574816e93186f2fde87474f8b028fc61472d35", Name: "社会库存"},
		{ID: "6dfc16a60056ec0f2234d45f5fd7068ec4d75f66021df5ff544102801674a59a", Name: "钢铁原料"},
	},
	// 价格指数
	"17b6a9a214c94ccc28e56d4d1a2dbb5acef3e73da431ddc0a849a4dcfc487d04": {
		{ID: "63913b906a7a663f7f71961952b1ddfa845714b5982655b773a62b85dd3b064e", Name: "综合价格指数"},
		{ID: "fc816c75aed82b9bc25563edc9cf0a0488a2012da38cbef5258da614d6e51ba9", Name: "地区价格"},
	},
}

// DefaultColumnIDs 返回对外接口默认抓取的 8 个主栏目
func DefaultColumnIDs() []string {
	return []string{
		"c42511ce3f868a515b49668dd250290c80d4dc8930c7e455d0e6e14b8033eae2", // 要闻
		"268f86fdf61ac8614f09db38a2d0295253043b03e092c7ff48ab94290296125c", // 会员动态
		"2e3c87064bdfc0e43d542d87fce8bcbc8fe0463d5a3da04d7e11b4c7d692194b", // 统计发布
		"1b4316d9238e09c735365896c8e4f677a3234e8363e5622ae6e79a5900a76f56", // 行业分析
		"17b6a9a214c94ccc28e56d4d1a2dbb5acef3e73da431ddc0a849a4dcfc487d04", // 价格指数
		"5d77b433182404193834120ceed16fe0625860fafd5fd9e71d0800c4df227060", // 宏观经济信息
		"ae2a3c0fd4936acf75f4aab6fadd08bc6371aa65bdd50419e74b70d6f043c473", // 相关行业信息
		"1bad7c56af746a666e4a4e56e54a9508d344d7bc1498360580613590c16b6c41", // 国际动态
	}
}

// ColumnName 返回基线里某栏目/子栏目的展示名，未知返回空串
func ColumnName(id string) string {
	for _, e := range baselineColumns {
		if e.ID == id {
			return e.Name
		}
	}
	for _, subs := range baselineSubtabs {
		for _, e := range subs {
			if e.ID == id {
				return e.Name
			}
		}
	}
	return ""
}
