package server

import "math/rand/v2"

// 昵称词库
var (
	adjectives = []string{
		"Brave", "Clever", "Happy", "Curious", "Swift",
		"Calm", "Lucky", "Bold", "Quiet", "Witty",
		"Sunny", "Misty", "Polar", "Tropical", "Nomad",
	}

	nouns = []string{
		"Explorer", "Voyager", "Pilot", "Cartographer", "Sailor",
		"Nomad", "Ranger", "Pathfinder", "Drifter", "Scout",
		"Albatross", "Penguin", "Falcon", "Compass", "Atlas",
	}
)

// GenerateNickname 生成随机昵称，玩家加入时未填写名字则使用它
func GenerateNickname() string {
	adj := adjectives[rand.IntN(len(adjectives))]
	noun := nouns[rand.IntN(len(nouns))]
	return adj + " " + noun
}
