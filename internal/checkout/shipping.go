package checkout

// ShippingPolicy : forfait de livraison, offert à partir d'un seuil. Montants en paise.
type ShippingPolicy struct {
	FlatCost      int64
	FreeThreshold int64
}

func (p ShippingPolicy) Cost(subtotal int64) int64 {
	if p.FlatCost <= 0 {
		return 0
	}
	if p.FreeThreshold > 0 && subtotal >= p.FreeThreshold {
		return 0
	}
	return p.FlatCost
}
