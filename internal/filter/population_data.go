package filter

// territorialAuthority is a 2024 Stats NZ population estimate with a growth
// multiplier (>1 growing, <1 declining). growth 0 means unknown.
type territorialAuthority struct {
	names      []string
	population int
	growth     float64
}

const defaultGrowthRate = 1.02

var territorialAuthorities = []territorialAuthority{
	{[]string{"auckland"}, 1_720_000, 1.08},
	{[]string{"christchurch city", "christchurch"}, 394_000, 1.06},
	{[]string{"wellington city", "wellington"}, 215_000, 1.03},
	{[]string{"hamilton city", "hamilton"}, 180_000, 1.12},
	{[]string{"tauranga city", "tauranga"}, 160_000, 1.15},
	{[]string{"lower hutt city", "lower hutt"}, 112_000, 0},
	{[]string{"dunedin city", "dunedin"}, 134_000, 0},
	{[]string{"palmerston north city", "palmerston north"}, 90_000, 0},
	{[]string{"napier city", "napier"}, 67_000, 0},
	{[]string{"hastings district", "hastings"}, 88_000, 0},
	{[]string{"nelson city", "nelson"}, 54_000, 0},
	{[]string{"new plymouth district", "new plymouth"}, 87_000, 0},
	{[]string{"rotorua district", "rotorua"}, 77_000, 0},
	{[]string{"whangarei district", "whangarei"}, 100_000, 1.05},
	{[]string{"invercargill city", "invercargill"}, 57_000, 0},
	{[]string{"upper hutt city", "upper hutt"}, 46_000, 0},
	{[]string{"porirua city", "porirua"}, 60_000, 0},
	{[]string{"kapiti coast district", "kapiti coast"}, 57_000, 1.06},
	{[]string{"whanganui district", "whanganui"}, 48_000, 0},
	{[]string{"gisborne district", "gisborne"}, 52_000, 0},

	// Waikato
	{[]string{"waikato district", "waikato"}, 80_000, 1.10},
	{[]string{"waipa district", "waipa"}, 58_000, 0},
	{[]string{"matamata-piako district", "matamata-piako"}, 37_000, 0},
	{[]string{"south waikato district", "south waikato"}, 26_000, 0},
	{[]string{"thames-coromandel district", "thames-coromandel"}, 32_000, 0},
	{[]string{"hauraki district", "hauraki"}, 21_000, 0},
	{[]string{"otorohanga district", "otorohanga"}, 10_600, 0},
	{[]string{"waitomo district", "waitomo"}, 9_800, 0},

	// Bay of Plenty
	{[]string{"western bay of plenty district", "western bay of plenty"}, 56_000, 1.08},
	{[]string{"whakatane district", "whakatane"}, 37_000, 0},
	{[]string{"kawerau district", "kawerau"}, 7_500, 0},
	{[]string{"opotiki district", "opotiki"}, 10_200, 0},

	// Canterbury
	{[]string{"selwyn district", "selwyn"}, 76_000, 1.20},
	{[]string{"waimakariri district", "waimakariri"}, 68_000, 1.12},
	{[]string{"timaru district", "timaru"}, 49_000, 0},
	{[]string{"ashburton district", "ashburton"}, 36_000, 0},

	{[]string{"queenstown-lakes district", "queenstown-lakes", "queenstown"}, 47_000, 1.18},
	{[]string{"taupo district", "taupo"}, 40_000, 0},
	{[]string{"horowhenua district", "horowhenua"}, 36_000, 0},
	{[]string{"wairoa district", "wairoa"}, 8_900, 0},
	{[]string{"central hawke's bay district", "central hawke's bay"}, 15_000, 0},
	{[]string{"rangitikei district", "rangitikei"}, 16_000, 0},
	{[]string{"ruapehu district", "ruapehu"}, 13_000, 0},
	{[]string{"manawatu district", "manawatu"}, 32_000, 0},
	{[]string{"tararua district", "tararua"}, 19_000, 0},
	{[]string{"south taranaki district", "south taranaki"}, 28_000, 0},
	{[]string{"stratford district", "stratford"}, 10_000, 0},
	{[]string{"far north district", "far north"}, 72_000, 0},
	{[]string{"kaipara district", "kaipara"}, 26_000, 0},
	{[]string{"marlborough district", "marlborough"}, 51_000, 0},
	{[]string{"tasman district", "tasman"}, 58_000, 0},
	{[]string{"buller district", "buller"}, 10_000, 0},
	{[]string{"grey district", "grey"}, 14_000, 0},
	{[]string{"westland district", "westland"}, 8_900, 0},
	{[]string{"hurunui district", "hurunui"}, 13_500, 0},
	{[]string{"kaikoura district", "kaikoura"}, 4_100, 0},
	{[]string{"mackenzie district", "mackenzie"}, 5_200, 0},
	{[]string{"waimate district", "waimate"}, 8_200, 0},
	{[]string{"waitaki district", "waitaki"}, 24_000, 0},
	{[]string{"central otago district", "central otago"}, 25_000, 0},
	{[]string{"clutha district", "clutha"}, 18_000, 0},
	{[]string{"southland district", "southland"}, 33_000, 0},
	{[]string{"gore district", "gore"}, 13_000, 0},
	{[]string{"chatham islands territory", "chatham islands"}, 700, 0},
}

var taIndex = func() map[string]territorialAuthority {
	m := make(map[string]territorialAuthority)
	for _, ta := range territorialAuthorities {
		for _, n := range ta.names {
			m[n] = ta
		}
	}
	return m
}()

// LookupPopulation returns the population and growth multiplier for a
// district or region name. Unknown growth resolves to 1.02.
func LookupPopulation(name string) (population int, growth float64, ok bool) {
	ta, ok := taIndex[normalizeArea(name)]
	if !ok {
		return 0, 0, false
	}
	growth = ta.growth
	if growth == 0 {
		growth = defaultGrowthRate
	}
	return ta.population, growth, true
}
