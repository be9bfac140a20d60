// Package catalog описывает каталог пакетов Telegram Stars.
// Каталог загружается при старте процесса и не меняется до его завершения.
package catalog

import "sort"

// Package описывает покупаемый пакет: количество Stars, цену в рублях,
// начисляемые бонусные очки и размер скидки в процентах.
type Package struct {
	Amount   int64
	Price    int64
	Points   int64
	Discount int
}

// Catalog хранит неизменяемый набор пакетов, адресуемых ключом кнопки.
type Catalog struct {
	packages map[string]Package
	keys     []string
}

// New создаёт каталог из указанного набора пакетов.
// Ключи упорядочиваются по возрастанию количества Stars.
func New(packages map[string]Package) *Catalog {
	keys := make([]string, 0, len(packages))
	for k := range packages {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return packages[keys[i]].Amount < packages[keys[j]].Amount
	})

	return &Catalog{
		packages: packages,
		keys:     keys,
	}
}

// Default возвращает стандартный каталог магазина.
func Default() *Catalog {
	return New(map[string]Package{
		"buy_50":   {Amount: 50, Price: 80, Points: 1, Discount: 0},
		"buy_75":   {Amount: 75, Price: 130, Points: 2, Discount: 5},
		"buy_100":  {Amount: 100, Price: 160, Points: 2, Discount: 10},
		"buy_250":  {Amount: 250, Price: 380, Points: 4, Discount: 15},
		"buy_500":  {Amount: 500, Price: 780, Points: 8, Discount: 20},
		"buy_750":  {Amount: 750, Price: 1300, Points: 12, Discount: 25},
		"buy_1000": {Amount: 1000, Price: 1580, Points: 15, Discount: 30},
	})
}

// Get возвращает пакет по ключу кнопки.
func (c *Catalog) Get(key string) (Package, bool) {
	p, ok := c.packages[key]
	return p, ok
}

// Keys возвращает ключи пакетов в порядке возрастания количества Stars.
// Возвращается копия: правки результата не затрагивают каталог.
func (c *Catalog) Keys() []string {
	return append([]string(nil), c.keys...)
}

// ByAmountPrice находит пакет по паре (количество, цена).
// Используется при подтверждении заказа: начисляемые очки определяются
// по сохранённым в заказе полям, а не по данным клиента.
func (c *Catalog) ByAmountPrice(amount, price int64) (Package, bool) {
	for _, p := range c.packages {
		if p.Amount == amount && p.Price == price {
			return p, true
		}
	}
	return Package{}, false
}

// Len возвращает количество пакетов в каталоге.
func (c *Catalog) Len() int {
	return len(c.packages)
}
