package riot

// Items that are never a finished purchase (consumables, trinkets, components)
var excludedItems = map[int]bool{
	// Potions and consumables
	2003: true, // Health Potion
	2031: true, // Refillable Potion
	2033: true, // Corrupting Potion
	2055: true, // Control Ward
	2138: true, // Elixir of Iron
	2139: true, // Elixir of Sorcery
	2140: true, // Elixir of Wrath

	// Trinkets
	3340: true, // Stealth Ward
	3363: true, // Farsight Alteration
	3364: true, // Oracle Lens

	1001: true, // Boots

	// Starters and early components
	1036: true, // Long Sword
	1037: true, // Pickaxe
	1038: true, // BF Sword
	1052: true, // Amplifying Tome
	1058: true, // Needlessly Large Rod
	1026: true, // Blasting Wand
	1027: true, // Sapphire Crystal
	1028: true, // Ruby Crystal
	1029: true, // Cloth Armor
	1031: true, // Chain Vest
	1033: true, // Null-Magic Mantle
	1057: true, // Negatron Cloak
	1042: true, // Dagger
	1043: true, // Recurve Bow
	1018: true, // Cloak of Agility
	1053: true, // Vampiric Scepter
	1054: true, // Doran's Shield
	1055: true, // Doran's Blade
	1056: true, // Doran's Ring
	1082: true, // Dark Seal
	1083: true, // Cull
}

// IsCompletedItem returns true if the item is a completed item worth calling
// out in a purchase timeline. Heuristic: finished items sit at 2000 and up.
func IsCompletedItem(itemID int) bool {
	if itemID == 0 || excludedItems[itemID] {
		return false
	}
	return itemID >= 2000
}
