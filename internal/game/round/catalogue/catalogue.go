// Package catalogue holds the cities players are asked to locate.
package catalogue

import (
	_ "embed"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/palemoky/geoquiz/internal/geo"
)

//go:embed cities.yaml
var embeddedCities []byte

// ErrEmpty is returned when a catalogue has no cities
var ErrEmpty = errors.New("catalogue: no cities")

// City 一个待定位的目标城市
type City struct {
	Name        string  `yaml:"name"`
	Country     string  `yaml:"country"`
	CountryCode string  `yaml:"country_code"`
	Lat         float64 `yaml:"lat"`
	Lng         float64 `yaml:"lng"`
}

// Default 返回内置城市列表
func Default() ([]City, error) {
	return Parse(embeddedCities)
}

// Load 从 YAML 文件加载城市列表，path 为空时使用内置列表
func Load(path string) ([]City, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取城市列表失败: %w", err)
	}
	return Parse(data)
}

// Parse 解析并校验 YAML 城市列表
func Parse(data []byte) ([]City, error) {
	var cities []City
	if err := yaml.Unmarshal(data, &cities); err != nil {
		return nil, fmt.Errorf("解析城市列表失败: %w", err)
	}
	if len(cities) == 0 {
		return nil, ErrEmpty
	}
	for i, c := range cities {
		if strings.TrimSpace(c.Name) == "" {
			return nil, fmt.Errorf("第 %d 个城市缺少名称", i+1)
		}
		if !geo.ValidCoordinates(c.Lat, c.Lng) {
			return nil, fmt.Errorf("城市 %s 坐标无效: (%v, %v)", c.Name, c.Lat, c.Lng)
		}
	}
	return cities, nil
}

// Picker 随机挑选城市，连续两次不会选中同一个城市。
// 非并发安全，由调用方加锁。
type Picker struct {
	cities []City
	rng    *rand.Rand
	last   int
}

// NewPicker 创建随机挑选器，rng 为 nil 时使用随机种子
func NewPicker(cities []City, rng *rand.Rand) (*Picker, error) {
	if len(cities) == 0 {
		return nil, ErrEmpty
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Picker{cities: cities, rng: rng, last: -1}, nil
}

// Next 返回下一个城市
func (p *Picker) Next() City {
	if len(p.cities) == 1 {
		p.last = 0
		return p.cities[0]
	}
	idx := p.rng.IntN(len(p.cities))
	if idx == p.last {
		idx = (idx + 1 + p.rng.IntN(len(p.cities)-1)) % len(p.cities)
	}
	p.last = idx
	return p.cities[idx]
}

// Len 返回城市数量
func (p *Picker) Len() int {
	return len(p.cities)
}
